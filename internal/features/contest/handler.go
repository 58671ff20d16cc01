// Package contest implements the airdrop contest features: judging posts
// submitted through mentions, quoting elected winners on the timeline and
// paying out airdrops.
package contest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeHandler = "contest-handler"

const fallbackAddressRequest = "Reply with your wallet address so we can send your reward if you win."

// HandlerProvider describes the contest judge feature.
func HandlerProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeHandler,
		Group:       botfeature.GroupContest,
		Title:       "Contest judge",
		Description: "Judges posts submitted to the contest through mentions and replies with the verdict",
		ConfigSchema: botfeature.Schema{
			"enabled": {Type: botfeature.FieldBool, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled": true,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Handler{BaseFeature: base}, nil
		},
	}
}

// Handler judges contest submissions. The judged post is the quoted post when
// the mention quotes one, otherwise the root of the mention's conversation.
// Each post is judged exactly once; the verdict write is conditional in the
// store, so a concurrent judge loses cleanly.
type Handler struct {
	botfeature.BaseFeature
}

type contestVerdict struct {
	Worth  bool   `json:"worth"`
	Reason string `json:"reason"`
}

func (h *Handler) StudyReply(ctx context.Context, mention *models.Post, parentChain []*models.Post) (string, error) {
	if !h.Bot().IsMentionedIn(mention.Text) {
		return "", nil
	}

	target, err := h.resolveTarget(ctx, mention, parentChain)
	if err != nil {
		return "", err
	}
	if target == nil || target.AuthorID == h.Bot().PlatformUserID {
		return "", nil
	}
	if target.WorthForAirdropContest != nil {
		return "", nil
	}

	author := h.authorScreenName(ctx, target.AuthorID)
	var verdict contestVerdict
	result, err := h.Invoke(ctx, llm.InvokeRequest{
		SystemPrompt: h.Prompt("contest_judge"),
		Variables: map[string]string{
			"bot_name":  h.Bot().Name,
			"author":    author,
			"post_text": target.Text,
		},
		StructuredSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"worth":  map[string]interface{}{"type": "boolean"},
				"reason": map[string]interface{}{"type": "string"},
			},
			"required": []string{"worth", "reason"},
		},
		StructuredOutput: &verdict,
	})
	if err != nil {
		return "", err
	}
	if !result.Structured {
		// No usable verdict, leave the post unjudged for a later pass.
		return "", nil
	}

	applied, err := h.Deps.Store.SetWorthForContest(ctx, target.ID, verdict.Worth)
	if err != nil {
		return "", err
	}
	if !applied {
		return "", nil
	}

	h.Logger().WithFields(h.Log()).WithFields(logging.Fields{
		"post_id": target.ID,
		"worth":   verdict.Worth,
	}).Info("Judged contest submission")
	h.Emit(events.TopicFeature, "contest_judged", map[string]interface{}{
		"post_id": target.ID,
		"worth":   verdict.Worth,
		"reason":  verdict.Reason,
	})

	if !verdict.Worth {
		return "", nil
	}

	fragment := "Your post just entered the contest!"
	if reason := strings.TrimSpace(verdict.Reason); reason != "" {
		fragment = "Your post just entered the contest. " + reason
	}
	if h.needsAddress(ctx, target.AuthorID) {
		fragment += " " + h.addressRequest(ctx, author)
	}
	return fragment, nil
}

// resolveTarget picks the post to judge. A quoted post missing from the store
// is fetched from the platform first.
func (h *Handler) resolveTarget(ctx context.Context, mention *models.Post, parentChain []*models.Post) (*models.Post, error) {
	if mention.QuotedPostID != nil {
		target, err := h.Deps.Store.PostByPlatformID(ctx, h.Bot().ID, *mention.QuotedPostID)
		if errors.Is(err, store.ErrNotFound) {
			return h.fetchAndStore(ctx, *mention.QuotedPostID)
		}
		if err != nil {
			return nil, err
		}
		return target, nil
	}
	if len(parentChain) > 0 {
		return parentChain[0], nil
	}
	return nil, nil
}

func (h *Handler) fetchAndStore(ctx context.Context, platformID string) (*models.Post, error) {
	fetched, _, err := h.Deps.Platform.FetchSinglePost(ctx, platformID)
	if err != nil {
		return nil, fmt.Errorf("fetch quoted post: %w", err)
	}
	if _, err := h.Deps.Store.EnsureAccount(ctx, fetched.AuthorID, fetched.AuthorScreenName); err != nil {
		return nil, err
	}
	publishedAt := fetched.CreatedAt
	return h.Deps.Store.CreatePost(ctx, store.CreatePostParams{
		BotID:           h.Bot().ID,
		AuthorID:        fetched.AuthorID,
		Text:            fetched.Text,
		PlatformPostID:  &fetched.PlatformID,
		ParentPostID:    fetched.ParentPlatformID,
		QuotedPostID:    fetched.QuotedPlatformID,
		PublishedAt:     &publishedAt,
		WasReplyHandled: true,
	})
}

func (h *Handler) authorScreenName(ctx context.Context, userID string) string {
	account, err := h.Deps.Store.GetAccount(ctx, userID)
	if err != nil {
		return userID
	}
	return account.ScreenName
}

func (h *Handler) needsAddress(ctx context.Context, userID string) bool {
	account, err := h.Deps.Store.GetAccount(ctx, userID)
	if err != nil {
		return true
	}
	return account.AirdropAddress == nil
}

func (h *Handler) addressRequest(ctx context.Context, author string) string {
	result, err := h.Invoke(ctx, llm.InvokeRequest{
		SystemPrompt: h.Prompt("airdrop_address_request"),
		Variables: map[string]string{
			"bot_name": h.Bot().Name,
			"author":   author,
		},
	})
	if err != nil || strings.TrimSpace(result.RawMessage) == "" {
		return fallbackAddressRequest
	}
	return strings.TrimSpace(result.RawMessage)
}
