package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/essayfeed-backend/internal/types"
)

var feedbackContentColumns = map[string]bool{
	types.FeedbackColumnCoT:      true,
	types.FeedbackColumnScore:    true,
	types.FeedbackColumnFeedback: true,
}

// fillColumnIfEmpty writes value only while the column is NULL or ''. The condition lives in the
// UPDATE itself so concurrent writers cannot both win.
func fillColumnIfEmpty(ctx context.Context, db *gorm.DB, model interface{}, id uuid.UUID, column, value string) (bool, error) {
	if !feedbackContentColumns[column] {
		return false, fmt.Errorf("unknown feedback column %q", column)
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Where(fmt.Sprintf("(%s IS NULL OR %s = '')", column, column)).
		Updates(map[string]interface{}{
			column:       value,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
