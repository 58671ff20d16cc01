package xcore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/metrics"
	"github.com/TriBrain/TweetAgent/internal/platform"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeSender = "xposts-sender"

// SenderProvider describes the publish pipeline feature.
func SenderProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeSender,
		Group:       botfeature.GroupCore,
		Title:       "Post sender",
		Description: "Publishes pending posts to the platform, splitting long texts into threads",
		ConfigSchema: botfeature.Schema{
			"enabled":          {Type: botfeature.FieldBool, Required: true},
			"interval_seconds": {Type: botfeature.FieldNumber, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": 20,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Sender{BaseFeature: base}, nil
		},
	}
}

// Sender claims at most one pending post per run. The claim is a conditional
// update in the store, so multiple replicas never publish the same post. A
// failed publish releases the claim and the next run retries.
type Sender struct {
	botfeature.BaseFeature
}

func (s *Sender) ScheduledExecution(ctx context.Context) error {
	post, err := s.Deps.Store.ClaimNextPendingPost(ctx, s.Bot().ID)
	if err != nil {
		return err
	}
	if post == nil {
		return nil
	}

	if post.IsSimulated {
		platformID := "simulated-" + uuid.NewString()
		published, err := s.Deps.Store.CompletePublish(ctx, post.ID, platformID, post.Text)
		if err != nil {
			return fmt.Errorf("complete simulated publish: %w", err)
		}
		metrics.PublishAttempts.WithLabelValues(s.Bot().Name, "simulated").Inc()
		s.Emit(events.TopicPost, "published", published)
		return nil
	}

	chunks := platform.BuildThreadChunks(post.Text, s.Deps.Platform.MaxPostLength())
	publishedChunks, err := s.Deps.Platform.PublishThread(ctx, chunks, post.ParentPostID, post.QuotedPostID)
	if len(publishedChunks) == 0 {
		metrics.PublishAttempts.WithLabelValues(s.Bot().Name, "error").Inc()
		if releaseErr := s.Deps.Store.ReleasePublishClaim(context.WithoutCancel(ctx), post.ID); releaseErr != nil {
			s.Logger().WithError(releaseErr).WithFields(s.Log()).Error("Failed to release publish claim")
		}
		return fmt.Errorf("publish thread: %w", err)
	}
	if err != nil {
		// The thread broke off mid-way; the published chunks are real posts
		// now, so record them and do not retry the whole text.
		s.Logger().WithError(err).WithFields(s.Log()).WithFields(logging.Fields{
			"post_id":   post.ID,
			"published": len(publishedChunks),
			"chunks":    len(chunks),
		}).Error("Thread published partially")
	}

	root := publishedChunks[0]
	published, storeErr := s.Deps.Store.CompletePublish(ctx, post.ID, root.PlatformID, root.Text)
	if storeErr != nil {
		return fmt.Errorf("complete publish: %w", storeErr)
	}

	previousID := root.PlatformID
	for _, chunk := range publishedChunks[1:] {
		now := time.Now()
		parentID := previousID
		if _, err := s.Deps.Store.CreatePost(ctx, store.CreatePostParams{
			BotID:           s.Bot().ID,
			AuthorID:        s.Bot().PlatformUserID,
			Text:            chunk.Text,
			PlatformPostID:  &chunk.PlatformID,
			ParentPostID:    &parentID,
			PublishedAt:     &now,
			WasReplyHandled: true,
		}); err != nil {
			return fmt.Errorf("record thread chunk: %w", err)
		}
		previousID = chunk.PlatformID
	}

	status := "ok"
	if err != nil {
		status = "partial"
	}
	metrics.PublishAttempts.WithLabelValues(s.Bot().Name, status).Inc()
	s.Logger().WithFields(s.Log()).WithFields(logging.Fields{
		"post_id":     post.ID,
		"platform_id": root.PlatformID,
		"chunks":      len(publishedChunks),
	}).Info("Published post")
	s.Emit(events.TopicPost, "published", published)
	return nil
}
