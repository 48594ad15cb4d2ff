package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/platform/logger"
	"github.com/yungbote/essayfeed-backend/internal/repos"
)

type Repos struct {
	Essay           repos.EssayRepo
	Segment         repos.SegmentRepo
	EssayFeedback   repos.EssayFeedbackRepo
	SegmentFeedback repos.SegmentFeedbackRepo
	Feed            repos.FeedRepo
	APIKey          repos.APIKeyRepo
	AICallLog       repos.AICallLogRepo
	JobRun          repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Essay:           repos.NewEssayRepo(db, log),
		Segment:         repos.NewSegmentRepo(db, log),
		EssayFeedback:   repos.NewEssayFeedbackRepo(db, log),
		SegmentFeedback: repos.NewSegmentFeedbackRepo(db, log),
		Feed:            repos.NewFeedRepo(db, log),
		APIKey:          repos.NewAPIKeyRepo(db, log),
		AICallLog:       repos.NewAICallLogRepo(db, log),
		JobRun:          repos.NewJobRunRepo(db, log),
	}
}
