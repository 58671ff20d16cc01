package contest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/internal/workflow"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeReposter = "contest-reposter"

// ReposterProvider describes the contest reposter feature.
func ReposterProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeReposter,
		Group:       botfeature.GroupContest,
		Title:       "Contest reposter",
		Description: "Periodically elects the best contest entry and quotes it on the bot timeline",
		ConfigSchema: botfeature.Schema{
			"enabled":            {Type: botfeature.FieldBool, Required: true},
			"interval_seconds":   {Type: botfeature.FieldNumber, Required: true},
			"elect_interval_min": {Type: botfeature.FieldNumber, Required: true},
			"candidate_limit":    {Type: botfeature.FieldNumber},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":            true,
			"interval_seconds":   300,
			"elect_interval_min": 60,
			"candidate_limit":    20,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Reposter{BaseFeature: base}, nil
		},
	}
}

// Reposter quotes one elected contest entry per rolling window. The window is
// measured against the most recent contest quote in the store, so restarts
// and replicas share the same rate limit.
type Reposter struct {
	botfeature.BaseFeature
}

type electionResult struct {
	Winner int `json:"winner"`
}

func (r *Reposter) ScheduledExecution(ctx context.Context) error {
	window := time.Duration(r.ConfigFloat("elect_interval_min") * float64(time.Minute))
	lastQuote, err := r.Deps.Store.MostRecentContestQuote(ctx, r.Bot().ID)
	if err != nil {
		return err
	}
	if lastQuote != nil && time.Since(lastQuote.CreatedAt) < window {
		return nil
	}

	candidates, err := r.Deps.Store.ContestCandidates(ctx, r.Bot().ID, r.ConfigInt("candidate_limit"))
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	graph := workflow.NewGraph("contest-repost", map[string]workflow.Reducer{
		"intro": workflow.ConcatStrings,
	})
	graph.AddNode("elect", r.electNode(candidates))
	graph.AddNode("write_intro", r.introNode(candidates))

	state, err := graph.Run(ctx, r.Logger())
	if err != nil {
		return err
	}
	winnerIndex, ok := state.Get("winner")
	if !ok {
		return nil
	}
	winner := candidates[winnerIndex.(int)]
	if winner.PlatformPostID == nil {
		return fmt.Errorf("elected post %s has no platform id", winner.ID)
	}

	now := time.Now()
	post, err := r.Deps.Store.CreatePost(ctx, store.CreatePostParams{
		BotID:               r.Bot().ID,
		AuthorID:            r.Bot().PlatformUserID,
		Text:                state.String("intro"),
		QuotedPostID:        winner.PlatformPostID,
		ContestQuotedPostID: winner.PlatformPostID,
		PublishRequestAt:    &now,
	})
	if err != nil {
		return fmt.Errorf("create contest quote post: %w", err)
	}
	if err := r.Deps.Store.MarkQuotedForContest(ctx, winner.ID); err != nil {
		return err
	}

	r.Logger().WithFields(r.Log()).WithFields(logging.Fields{
		"winner_post_id": winner.ID,
		"quote_post_id":  post.ID,
	}).Info("Scheduled contest quote")
	r.Emit(events.TopicFeature, "contest_repost_scheduled", post)
	return nil
}

// electNode asks the model to pick one candidate. An unusable answer leaves
// the winner channel unset, which ends the run with no quote.
func (r *Reposter) electNode(candidates []*models.Post) workflow.NodeFunc {
	return func(ctx context.Context, state workflow.State) (workflow.State, error) {
		var numbered strings.Builder
		for i, candidate := range candidates {
			fmt.Fprintf(&numbered, "%d. %s\n", i+1, candidate.Text)
		}

		var election electionResult
		result, err := r.Invoke(ctx, llm.InvokeRequest{
			SystemPrompt: r.Prompt("contest_post_elector"),
			Variables: map[string]string{
				"bot_name":   r.Bot().Name,
				"candidates": numbered.String(),
			},
			StructuredSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"winner": map[string]interface{}{"type": "integer"},
				},
				"required": []string{"winner"},
			},
			StructuredOutput: &election,
		})
		if err != nil {
			return state, err
		}
		if !result.Structured || election.Winner < 1 || election.Winner > len(candidates) {
			return state, nil
		}
		return state.With("winner", election.Winner-1), nil
	}
}

// introNode writes the quote introduction for the elected post. Model failure
// falls back to a plain announcement so an election never goes to waste.
func (r *Reposter) introNode(candidates []*models.Post) workflow.NodeFunc {
	return func(ctx context.Context, state workflow.State) (workflow.State, error) {
		winnerIndex, ok := state.Get("winner")
		if !ok {
			return state, nil
		}
		winner := candidates[winnerIndex.(int)]
		author := winner.AuthorID
		if account, err := r.Deps.Store.GetAccount(ctx, winner.AuthorID); err == nil {
			author = account.ScreenName
		}

		result, err := r.Invoke(ctx, llm.InvokeRequest{
			SystemPrompt: r.Prompt("contest_quote_intro"),
			Variables: map[string]string{
				"bot_name":  r.Bot().Name,
				"author":    author,
				"post_text": winner.Text,
			},
		})
		if err != nil || strings.TrimSpace(result.RawMessage) == "" {
			return state.With("intro", fmt.Sprintf("Contest entry by @%s:", author)), nil
		}
		return state.With("intro", strings.TrimSpace(result.RawMessage)), nil
	}
}
