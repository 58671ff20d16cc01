// Package news holds the news pipeline features: filtering source posts down
// to real news, replying to news mentions with an opinion and writing summary
// posts.
package news

import (
	"context"
	"encoding/json"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeFilter = "real-news-filter"

// FilterProvider describes the news classifier feature.
func FilterProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeFilter,
		Group:       botfeature.GroupNews,
		Title:       "Real news filter",
		Description: "Classifies posts from source accounts as real news or noise",
		ConfigSchema: botfeature.Schema{
			"enabled":            {Type: botfeature.FieldBool, Required: true},
			"interval_seconds":   {Type: botfeature.FieldNumber, Required: true},
			"source_account_ids": {Type: botfeature.FieldArray, Elem: botfeature.FieldString},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":            true,
			"interval_seconds":   60,
			"source_account_ids": []interface{}{},
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Filter{BaseFeature: base}, nil
		},
	}
}

// Filter classifies one unclassified source post per run. The verdict arrives
// through a tool call; a run where the model never calls the tool leaves the
// post unclassified for the next pass.
type Filter struct {
	botfeature.BaseFeature
}

func (f *Filter) ScheduledExecution(ctx context.Context) error {
	sourceIDs := f.ConfigStrings("source_account_ids")
	if len(sourceIDs) == 0 {
		return nil
	}
	post, err := f.Deps.Store.NextUnclassifiedNewsPost(ctx, f.Bot().ID, sourceIDs)
	if err != nil {
		return err
	}
	if post == nil {
		return nil
	}

	author := post.AuthorID
	if account, err := f.Deps.Store.GetAccount(ctx, post.AuthorID); err == nil {
		author = account.ScreenName
	}

	decided := false
	verdict := false
	classify := llm.InvokableTool{
		Tool: llm.Tool{
			Name:        "classify_news",
			Description: "Record whether the post is real, verifiable news",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"is_real_news": map[string]interface{}{"type": "boolean"},
				},
				"required": []string{"is_real_news"},
			},
		},
		Handler: func(ctx context.Context, arguments json.RawMessage) (string, error) {
			var params struct {
				IsRealNews bool `json:"is_real_news"`
			}
			if err := json.Unmarshal(arguments, &params); err != nil {
				return "", err
			}
			decided = true
			verdict = params.IsRealNews
			return "classification recorded", nil
		},
	}

	if _, err := f.Invoke(ctx, llm.InvokeRequest{
		SystemPrompt: f.Prompt("news_classify"),
		Variables: map[string]string{
			"bot_name":  f.Bot().Name,
			"author":    author,
			"post_text": post.Text,
		},
		Tools: []llm.InvokableTool{classify},
	}); err != nil {
		return err
	}
	if !decided {
		f.Logger().WithFields(f.Log()).WithField("post_id", post.ID).Warn("Classifier made no tool call")
		return nil
	}

	if err := f.Deps.Store.SetIsRealNews(ctx, post.ID, verdict); err != nil {
		return err
	}
	f.Logger().WithFields(f.Log()).WithFields(logging.Fields{
		"post_id":      post.ID,
		"is_real_news": verdict,
	}).Info("Classified source post")
	f.Emit(events.TopicFeature, "news_classified", map[string]interface{}{
		"post_id":      post.ID,
		"is_real_news": verdict,
	})
	return nil
}
