// Package xcore holds the core timeline features every bot carries: pulling
// posts in from the platform, aggregating reply fragments and publishing
// pending posts out.
package xcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/platform"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const TypeFetcher = "xposts-fetcher"

// FetcherProvider describes the post fetcher feature.
func FetcherProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeFetcher,
		Group:       botfeature.GroupCore,
		Title:       "Post fetcher",
		Description: "Pulls new posts from source accounts and mentions of the bot into the datastore",
		ConfigSchema: botfeature.Schema{
			"enabled":          {Type: botfeature.FieldBool, Required: true},
			"interval_seconds": {Type: botfeature.FieldNumber, Required: true},
			"source_accounts":  {Type: botfeature.FieldArray, Elem: botfeature.FieldString},
			"lookback_hours":   {Type: botfeature.FieldNumber},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": 120,
			"source_accounts":  []interface{}{},
			"lookback_hours":   24,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &Fetcher{BaseFeature: base}, nil
		},
	}
}

// Fetcher ingests platform posts. Posts already stored (by platform id) are
// skipped, so overlapping search windows are harmless.
type Fetcher struct {
	botfeature.BaseFeature
}

func (f *Fetcher) ScheduledExecution(ctx context.Context) error {
	lookback := time.Duration(f.ConfigFloat("lookback_hours") * float64(time.Hour))
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	notBefore := time.Now().Add(-lookback)

	var fetched []platform.FetchedPost
	if accounts := f.ConfigStrings("source_accounts"); len(accounts) > 0 {
		posts, err := f.Deps.Platform.SearchPostsFromAccounts(ctx, accounts, notBefore)
		if err != nil {
			f.Logger().WithError(err).WithFields(f.Log()).Warn("Source account search failed")
		} else {
			fetched = append(fetched, posts...)
		}
	}
	mentions, err := f.Deps.Platform.SearchMentions(ctx, f.Bot().PlatformUserID, notBefore)
	if err != nil {
		f.Logger().WithError(err).WithFields(f.Log()).Warn("Mention search failed")
	} else {
		fetched = append(fetched, mentions...)
	}

	stored := 0
	for _, post := range fetched {
		created, err := f.storePost(ctx, post)
		if err != nil {
			return fmt.Errorf("store fetched post %s: %w", post.PlatformID, err)
		}
		if created {
			stored++
		}
	}
	if stored > 0 {
		f.Logger().WithFields(f.Log()).WithFields(logging.Fields{
			"fetched": len(fetched),
			"stored":  stored,
		}).Info("Ingested new posts")
	}
	return nil
}

func (f *Fetcher) storePost(ctx context.Context, fetched platform.FetchedPost) (bool, error) {
	_, err := f.Deps.Store.PostByPlatformID(ctx, f.Bot().ID, fetched.PlatformID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	if _, err := f.Deps.Store.EnsureAccount(ctx, fetched.AuthorID, fetched.AuthorScreenName); err != nil {
		return false, err
	}

	publishedAt := fetched.CreatedAt
	post, err := f.Deps.Store.CreatePost(ctx, store.CreatePostParams{
		BotID:          f.Bot().ID,
		AuthorID:       fetched.AuthorID,
		Text:           fetched.Text,
		PlatformPostID: &fetched.PlatformID,
		ParentPostID:   fetched.ParentPlatformID,
		QuotedPostID:   fetched.QuotedPlatformID,
		PublishedAt:    &publishedAt,
	})
	if err != nil {
		return false, err
	}
	f.Emit(events.TopicPost, "created", post)
	return true, nil
}
