package news

import (
	"context"
	"strings"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/workflow"
	"github.com/TriBrain/TweetAgent/pkg/llm"
)

const TypeReplier = "generic-replier"

// ReplierProvider describes the opinion replier feature.
func ReplierProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeReplier,
		Group:       botfeature.GroupNews,
		Title:       "Opinion replier",
		Description: "Drafts an opinionated reply when the bot is mentioned under a news post",
		ConfigSchema: botfeature.Schema{
			"enabled": {Type: botfeature.FieldBool, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled": true,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Replier{BaseFeature: base}, nil
		},
	}
}

// Replier contributes an opinion fragment for mentions in news conversations.
// It runs a two-step pipeline: extract the traits of the post, then draft the
// reply from them. Trait writes accumulate, so a future multi-pass extraction
// keeps all of them.
type Replier struct {
	botfeature.BaseFeature
}

type postTraits struct {
	Traits []string `json:"traits"`
}

func (r *Replier) StudyReply(ctx context.Context, mention *models.Post, parentChain []*models.Post) (string, error) {
	if !r.Bot().IsMentionedIn(mention.Text) {
		return "", nil
	}
	target := mention
	if len(parentChain) > 0 {
		target = parentChain[0]
	}
	if target.IsRealNews == nil || !*target.IsRealNews {
		return "", nil
	}

	author := target.AuthorID
	if account, err := r.Deps.Store.GetAccount(ctx, target.AuthorID); err == nil {
		author = account.ScreenName
	}

	graph := workflow.NewGraph("opinion-reply", map[string]workflow.Reducer{
		"traits": workflow.AppendStrings,
	})
	graph.AddNode("extract_traits", r.traitsNode(author, target))
	graph.AddNode("draft_reply", r.draftNode(author, target))

	state, err := graph.Run(ctx, r.Logger())
	if err != nil {
		return "", err
	}
	return state.String("draft"), nil
}

func (r *Replier) traitsNode(author string, target *models.Post) workflow.NodeFunc {
	return func(ctx context.Context, state workflow.State) (workflow.State, error) {
		var traits postTraits
		result, err := r.Invoke(ctx, llm.InvokeRequest{
			SystemPrompt: r.Prompt("tweet_traits"),
			Variables: map[string]string{
				"bot_name":  r.Bot().Name,
				"author":    author,
				"post_text": target.Text,
			},
			StructuredSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"traits": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"traits"},
			},
			StructuredOutput: &traits,
		})
		if err != nil {
			return state, err
		}
		if !result.Structured || len(traits.Traits) == 0 {
			return state, nil
		}
		return state.With("traits", traits.Traits), nil
	}
}

func (r *Replier) draftNode(author string, target *models.Post) workflow.NodeFunc {
	return func(ctx context.Context, state workflow.State) (workflow.State, error) {
		result, err := r.Invoke(ctx, llm.InvokeRequest{
			SystemPrompt: r.Prompt("opinion_reply"),
			Variables: map[string]string{
				"bot_name":  r.Bot().Name,
				"author":    author,
				"post_text": target.Text,
				"traits":    strings.Join(state.Strings("traits"), ", "),
			},
		})
		if err != nil {
			return state, err
		}
		draft := strings.TrimSpace(result.RawMessage)
		if draft == "" {
			return state, nil
		}
		return state.With("draft", draft), nil
	}
}
