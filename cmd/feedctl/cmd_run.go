package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/feed"
	"github.com/yungbote/essayfeed-backend/internal/modules/feedback/sink"
	"github.com/yungbote/essayfeed-backend/internal/types"
)

var (
	essayFlag   string
	segmentFlag string
)

func addRefFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&essayFlag, "essay", "", "essay id (required)")
	cmd.Flags().StringVar(&segmentFlag, "segment", "", "segment id, narrows segment-scoped feeds")
	_ = cmd.MarkFlagRequired("essay")
}

func parseRef(feedArg string) (uuid.UUID, feed.EssayRef, error) {
	var ref feed.EssayRef
	feedID, err := uuid.Parse(feedArg)
	if err != nil {
		return uuid.Nil, ref, fmt.Errorf("invalid feed id %q: %w", feedArg, err)
	}
	if ref.EssayID, err = uuid.Parse(essayFlag); err != nil {
		return uuid.Nil, ref, fmt.Errorf("invalid essay id %q: %w", essayFlag, err)
	}
	if segmentFlag != "" {
		seg, err := uuid.Parse(segmentFlag)
		if err != nil {
			return uuid.Nil, ref, fmt.Errorf("invalid segment id %q: %w", segmentFlag, err)
		}
		ref.SegmentID = &seg
	}
	return feedID, ref, nil
}

var runCmd = &cobra.Command{
	Use:   "run <feed-id>",
	Short: "Run a feed against an essay and stream its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedID, ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		_, err = a.Services.Orchestrator.RunByID(ctx, feedID, ref, newTerminalSink(cmd.OutOrStdout()))
		return err
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview <feed-id>",
	Short: "Expand every step's prompt without calling a provider",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedID, ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		f, err := a.Services.Orchestrator.Load(ctx, feedID)
		if err != nil {
			return err
		}
		steps, err := a.Services.Orchestrator.Preview(ctx, f, ref)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, headerStyle.Render(f.Name)+mutedStyle.Render(" ("+f.ApplyTo+")"))
		for i, s := range steps {
			kind := "single"
			if s.IsList {
				kind = fmt.Sprintf("pooled x%d", len(s.Prompts))
			}
			fmt.Fprintf(out, "%s %s\n", labelStyle.Render(fmt.Sprintf("%d. %s", i+1, s.Type)), mutedStyle.Render(kind))
			for _, p := range s.Prompts {
				fmt.Fprintln(out, promptStyle.Render(p))
			}
		}
		return nil
	},
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <feed-id>",
	Short: "Queue a feed run for the server's job worker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feedID, ref, err := parseRef(args[0])
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		if _, err := a.Services.Orchestrator.Load(ctx, feedID); err != nil {
			return err
		}
		job := &types.JobRun{
			JobType:   types.JobTypeFeedRun,
			FeedID:    feedID,
			EssayID:   ref.EssayID,
			SegmentID: ref.SegmentID,
			Status:    types.JobStatusQueued,
			Stage:     "queued",
		}
		if _, err := a.Repos.JobRun.Create(ctx, nil, []*types.JobRun{job}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s %s\n", okStyle.Render("queued"), job.ID, mutedStyle.Render("events:"), job.Channel())
		return nil
	},
}

func init() {
	addRefFlags(runCmd)
	addRefFlags(previewCmd)
	addRefFlags(enqueueCmd)
}

// newTerminalSink prints content deltas inline and lifecycle events as labelled lines.
func newTerminalSink(w io.Writer) sink.Sink {
	var mu sync.Mutex
	inline := false
	return sink.Func(func(eventType string, payload map[string]any, isError bool) {
		mu.Lock()
		defer mu.Unlock()
		line := func(s string) {
			if inline {
				fmt.Fprintln(w)
				inline = false
			}
			fmt.Fprintln(w, s)
		}
		switch eventType {
		case sink.EventFeedStart:
			line(headerStyle.Render(fmt.Sprint(payload["name"])) + mutedStyle.Render(fmt.Sprintf(" %v steps", payload["steps"])))
		case sink.EventBatchProcessing:
			line(labelStyle.Render("pool") + mutedStyle.Render(fmt.Sprintf(" %v prompts", payload["total"])))
		case sink.EventParallelProgress:
			line(mutedStyle.Render(fmt.Sprintf("  %v/%v", payload["processed"], payload["total"])))
		case sink.EventParallelError:
			line(errorStyle.Render(fmt.Sprintf("  variant %v: %v", payload["index"], payload["error"])))
		case sink.EventParallelComplete:
			line(mutedStyle.Render(fmt.Sprintf("  done: %v ok, %v failed", payload["successful"], payload["failed"])))
		case sink.EventFeedError:
			line(errorStyle.Render("feed failed: ") + fmt.Sprint(payload["error"]))
		case sink.EventFeedComplete:
			line(okStyle.Render("complete"))
		default:
			if isError {
				line(errorStyle.Render(eventType+": ") + fmt.Sprint(payload["error"]))
				return
			}
			if idx, pooled := payload["index"]; pooled {
				line(labelStyle.Render(fmt.Sprintf("[%v] ", idx)) + fmt.Sprint(payload["content"]))
				return
			}
			if delta, ok := payload["content"].(string); ok {
				fmt.Fprint(w, delta)
				inline = true
			}
		}
	})
}
