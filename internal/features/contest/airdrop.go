package contest

import (
	"context"
	"time"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/platform"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const (
	TypeAirdropSnapshot = "airdrop-snapshot"
	TypeAirdropSender   = "airdrop-sender"
)

// AirdropSnapshotProvider describes the airdrop snapshot feature.
func AirdropSnapshotProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeAirdropSnapshot,
		Group:       botfeature.GroupContest,
		Title:       "Airdrop snapshot",
		Description: "Periodically weights contest-worthy posts by engagement and records the owed airdrops",
		ConfigSchema: botfeature.Schema{
			"enabled":                 {Type: botfeature.FieldBool, Required: true},
			"interval_seconds":        {Type: botfeature.FieldNumber, Required: true},
			"snapshot_interval_hours": {Type: botfeature.FieldNumber, Required: true},
			"stats_delay_hours":       {Type: botfeature.FieldNumber, Required: true},
			"pool_tokens":             {Type: botfeature.FieldNumber, Required: true},
			"max_posts":               {Type: botfeature.FieldNumber},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":                 true,
			"interval_seconds":        600,
			"snapshot_interval_hours": 24,
			"stats_delay_hours":       24,
			"pool_tokens":             1000,
			"max_posts":               50,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &AirdropSnapshot{BaseFeature: base}, nil
		},
	}
}

// AirdropSnapshot splits the configured token pool across contest-worthy
// posts, weighted by live engagement. Posts younger than the stats delay wait
// for the next snapshot so their metrics had time to settle. The airdrop
// insert is idempotent per (bot, post), making a rerun after a crash safe.
type AirdropSnapshot struct {
	botfeature.BaseFeature
}

func (a *AirdropSnapshot) ScheduledExecution(ctx context.Context) error {
	window := time.Duration(a.ConfigFloat("snapshot_interval_hours") * float64(time.Hour))
	lastAt, err := a.Deps.Store.MostRecentAirdropAt(ctx, a.Bot().ID)
	if err != nil {
		return err
	}
	if lastAt != nil && time.Since(*lastAt) < window {
		return nil
	}

	cutoff := time.Now().Add(-time.Duration(a.ConfigFloat("stats_delay_hours") * float64(time.Hour)))
	posts, err := a.Deps.Store.WorthyPostsBefore(ctx, a.Bot().ID, cutoff, a.ConfigInt("max_posts"))
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		return nil
	}

	type payout struct {
		postID  string
		userID  string
		address string
		weight  float64
	}
	var payouts []payout
	var totalWeight float64
	for _, post := range posts {
		if post.PlatformPostID == nil {
			continue
		}
		account, err := a.Deps.Store.GetAccount(ctx, post.AuthorID)
		if err != nil || account.AirdropAddress == nil {
			// No payout address, the post keeps waiting for one.
			continue
		}
		weight := 1.0
		if _, stats, err := a.Deps.Platform.FetchSinglePost(ctx, *post.PlatformPostID); err == nil {
			weight = engagementWeight(stats)
		} else {
			a.Logger().WithError(err).WithFields(a.Log()).Warn("Stats fetch failed, using base weight")
		}
		payouts = append(payouts, payout{
			postID:  post.ID,
			userID:  post.AuthorID,
			address: *account.AirdropAddress,
			weight:  weight,
		})
		totalWeight += weight
	}
	if len(payouts) == 0 {
		return nil
	}

	pool := a.ConfigFloat("pool_tokens")
	created := 0
	for _, p := range payouts {
		amount := pool * p.weight / totalWeight
		airdrop, err := a.Deps.Store.CreateAirdrop(ctx, a.Bot().ID, p.postID, p.userID, p.address, amount)
		if err != nil {
			return err
		}
		if airdrop != nil {
			created++
			a.Emit(events.TopicAirdrop, "created", airdrop)
		}
	}
	a.Logger().WithFields(a.Log()).WithFields(logging.Fields{
		"airdrops": created,
		"posts":    len(posts),
	}).Info("Airdrop snapshot recorded")
	return nil
}

func engagementWeight(stats *platform.PostMetrics) float64 {
	if stats == nil {
		return 1
	}
	return 1 +
		float64(stats.ImpressionCount)*0.01 +
		float64(stats.LikeCount) +
		float64(stats.RepostCount)*2 +
		float64(stats.CommentCount)
}

// AirdropSenderProvider describes the airdrop transfer feature.
func AirdropSenderProvider() *botfeature.Provider {
	return &botfeature.Provider{
		Type:        TypeAirdropSender,
		Group:       botfeature.GroupContest,
		Title:       "Airdrop sender",
		Description: "Transfers owed airdrop tokens to winner addresses",
		ConfigSchema: botfeature.Schema{
			"enabled":          {Type: botfeature.FieldBool, Required: true},
			"interval_seconds": {Type: botfeature.FieldNumber, Required: true},
		},
		DefaultConfig: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": 60,
		},
		New: func(base botfeature.BaseFeature) (botfeature.Feature, error) {
			return &AirdropSender{BaseFeature: base}, nil
		},
	}
}

// AirdropSender executes at most one pending transfer per run, with the same
// claim and release semantics as the post sender.
type AirdropSender struct {
	botfeature.BaseFeature
}

func (a *AirdropSender) ScheduledExecution(ctx context.Context) error {
	airdrop, err := a.Deps.Store.ClaimNextPendingTransfer(ctx, a.Bot().ID)
	if err != nil {
		return err
	}
	if airdrop == nil {
		return nil
	}

	txID, err := a.Deps.Transfer.Transfer(ctx, airdrop.Address, airdrop.TokenAmount)
	if err != nil {
		if releaseErr := a.Deps.Store.ReleaseTransferClaim(context.WithoutCancel(ctx), airdrop.ID); releaseErr != nil {
			a.Logger().WithError(releaseErr).WithFields(a.Log()).Error("Failed to release transfer claim")
		}
		return err
	}
	if err := a.Deps.Store.CompleteTransfer(ctx, airdrop.ID, txID); err != nil {
		return err
	}

	a.Logger().WithFields(a.Log()).WithFields(logging.Fields{
		"airdrop_id": airdrop.ID,
		"tx_id":      txID,
		"amount":     airdrop.TokenAmount,
	}).Info("Airdrop transferred")
	a.Emit(events.TopicAirdrop, "transferred", airdrop)
	return nil
}
