package xcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/conversation"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeHandler = "xposts-handler"

// HandlerProvider describes the reply aggregator feature.
func HandlerProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeHandler,
		Group:       botfeature.GroupCore,
		Title:       "Reply aggregator",
		Description: "Collects reply fragments from the bot's features and merges them into one reply post",
		ConfigSchema: botfeature.Schema{
			"enabled":          {Type: botfeature.FieldBool, Required: true},
			"interval_seconds": {Type: botfeature.FieldNumber, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": 30,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Handler{BaseFeature: base}, nil
		},
	}
}

// Handler processes one unhandled post per run. Every feature implementing
// StudyReply gets a chance to contribute a fragment; the fragments merge into
// a single pending reply. A post with zero fragments produces no reply, but
// the post is marked handled either way so it is never revisited.
type Handler struct {
	botfeature.BaseFeature
}

func (h *Handler) ScheduledExecution(ctx context.Context) error {
	post, err := h.Deps.Store.ClaimNextUnhandledPost(ctx, h.Bot().ID, h.Bot().PlatformUserID)
	if err != nil {
		return err
	}
	if post == nil {
		return nil
	}

	defer func() {
		if err := h.Deps.Store.MarkReplyHandled(context.WithoutCancel(ctx), post.ID); err != nil {
			h.Logger().WithError(err).WithFields(h.Log()).Error("Failed to mark post handled")
		}
	}()

	var parentChain []*models.Post
	if post.PlatformPostID != nil {
		parentChain, err = conversation.ParentChain(ctx, h.Deps.Store, h.Logger(), h.Bot().ID, *post.PlatformPostID)
		if err != nil {
			h.Logger().WithError(err).WithFields(h.Log()).Warn("Parent chain resolution failed")
		}
	}

	fragments := h.collectFragments(ctx, post, parentChain)
	if len(fragments) == 0 {
		return nil
	}

	replyText := h.mergeFragments(ctx, fragments)
	now := time.Now()
	reply, err := h.Deps.Store.CreatePost(ctx, store.CreatePostParams{
		BotID:            h.Bot().ID,
		AuthorID:         h.Bot().PlatformUserID,
		Text:             replyText,
		ParentPostID:     post.PlatformPostID,
		PublishRequestAt: &now,
		IsSimulated:      post.IsSimulated,
	})
	if err != nil {
		return fmt.Errorf("create reply post: %w", err)
	}

	h.Logger().WithFields(h.Log()).WithFields(logging.Fields{
		"post_id":   post.ID,
		"fragments": len(fragments),
	}).Info("Scheduled aggregated reply")
	h.Emit(events.TopicPost, "created", reply)
	return nil
}

// collectFragments asks every sibling ReplyStudier for its contribution. A
// failing feature loses its fragment but never blocks the others.
func (h *Handler) collectFragments(ctx context.Context, post *models.Post, parentChain []*models.Post) []string {
	var fragments []string
	for _, feature := range h.Deps.Features.Features() {
		studier, ok := feature.(botfeature.ReplyStudier)
		if !ok {
			continue
		}
		if enabled, _ := feature.Config()["enabled"].(bool); !enabled {
			continue
		}
		fragment, err := studier.StudyReply(ctx, post, parentChain)
		if err != nil {
			h.Logger().WithError(err).WithFields(logging.Fields{
				"bot":     h.Bot().Name,
				"feature": feature.Type(),
				"post_id": post.ID,
			}).Warn("Reply study failed")
			continue
		}
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
	return fragments
}

// mergeFragments folds multiple fragments into one reply via the model. When
// the model produces nothing usable the fragments are joined verbatim, so a
// reply is never lost to a flaky completion.
func (h *Handler) mergeFragments(ctx context.Context, fragments []string) string {
	fallback := strings.Join(fragments, "\n\n")
	if len(fragments) == 1 {
		return fragments[0]
	}

	result, err := h.Invoke(ctx, llm.InvokeRequest{
		SystemPrompt: h.Prompt("reply_merge"),
		Variables: map[string]string{
			"bot_name":   h.Bot().Name,
			"fragments":  fallback,
			"max_length": fmt.Sprintf("%d", h.Deps.Platform.MaxPostLength()),
		},
	})
	if err != nil || strings.TrimSpace(result.RawMessage) == "" {
		if err != nil {
			h.Logger().WithError(err).WithFields(h.Log()).Warn("Fragment merge failed, joining verbatim")
		}
		return fallback
	}
	return strings.TrimSpace(result.RawMessage)
}
