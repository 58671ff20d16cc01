package news

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeWriter = "news-summary-writer"

// WriterProvider describes the news summary writer feature.
func WriterProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeWriter,
		Group:       botfeature.GroupNews,
		Title:       "News summary writer",
		Description: "Writes timeline posts summarizing classified real-news posts",
		ConfigSchema: botfeature.Schema{
			"enabled":          {Type: botfeature.FieldBool, Required: true},
			"interval_seconds": {Type: botfeature.FieldNumber, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": 900,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Writer{BaseFeature: base}, nil
		},
	}
}

// Writer summarizes one real-news post per run into a pending timeline post
// quoting the source. A post only gets its summarized stamp after a summary
// was actually scheduled, so a failed model call retries next run.
type Writer struct {
	botfeature.BaseFeature
}

func (w *Writer) ScheduledExecution(ctx context.Context) error {
	source, err := w.Deps.Store.NextUnsummarizedNewsPost(ctx, w.Bot().ID)
	if err != nil {
		return err
	}
	if source == nil {
		return nil
	}

	result, err := w.Invoke(ctx, llm.InvokeRequest{
		SystemPrompt: w.Prompt("news_summary"),
		Variables: map[string]string{
			"bot_name":   w.Bot().Name,
			"post_text":  source.Text,
			"max_length": fmt.Sprintf("%d", w.Deps.Platform.MaxPostLength()),
		},
	})
	if err != nil {
		return err
	}
	summary := strings.TrimSpace(result.RawMessage)
	if summary == "" {
		w.Logger().WithFields(w.Log()).WithField("post_id", source.ID).Warn("Summary came back empty")
		return nil
	}

	now := time.Now()
	post, err := w.Deps.Store.CreatePost(ctx, store.CreatePostParams{
		BotID:            w.Bot().ID,
		AuthorID:         w.Bot().PlatformUserID,
		Text:             summary,
		QuotedPostID:     source.PlatformPostID,
		PublishRequestAt: &now,
	})
	if err != nil {
		return fmt.Errorf("create summary post: %w", err)
	}
	if err := w.Deps.Store.MarkSummarized(ctx, source.ID); err != nil {
		return err
	}

	w.Logger().WithFields(w.Log()).WithFields(logging.Fields{
		"source_post_id":  source.ID,
		"summary_post_id": post.ID,
	}).Info("Scheduled news summary")
	w.Emit(events.TopicPost, "created", post)
	return nil
}
