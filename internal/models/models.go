package models

import (
	"strings"
	"time"
)

// Bot is one autonomous social media identity. Each bot runs its own feature
// set on its own scheduler loop.
type Bot struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PlatformUserID string    `json:"platform_user_id"`
	ScreenName     string    `json:"screen_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// IsMentionedIn reports whether the bot handle appears in the given post text.
func (b *Bot) IsMentionedIn(text string) bool {
	if b == nil || b.ScreenName == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), "@"+strings.ToLower(b.ScreenName))
}

// Account is a platform identity referenced by posts. The airdrop address is
// collected from users through replies and stays nil until they provide one.
type Account struct {
	UserID         string    `json:"user_id"`
	ScreenName     string    `json:"screen_name"`
	AirdropAddress *string   `json:"airdrop_address,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Post is a stored social post, either fetched from the platform or produced
// by a bot. PlatformPostID stays nil until the post is actually published.
//
// A post with PublishRequestAt set and PublishedAt nil is pending publish.
// WorthForAirdropContest is tri-state: nil means never judged; once non-nil it
// is never re-evaluated.
type Post struct {
	ID                  string     `json:"id"`
	BotID               string     `json:"bot_id"`
	PlatformPostID      *string    `json:"platform_post_id,omitempty"`
	ParentPostID        *string    `json:"parent_post_id,omitempty"`
	QuotedPostID        *string    `json:"quoted_post_id,omitempty"`
	ContestQuotedPostID *string    `json:"contest_quoted_post_id,omitempty"`
	AuthorID            string     `json:"author_id"`
	Text                string     `json:"text"`
	CreatedAt           time.Time  `json:"created_at"`
	PublishRequestAt    *time.Time `json:"publish_request_at,omitempty"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	WasReplyHandled     bool       `json:"was_reply_handled"`
	IsSimulated         bool       `json:"is_simulated"`

	WorthForAirdropContest *bool      `json:"worth_for_airdrop_contest,omitempty"`
	QuotedForContestAt     *time.Time `json:"quoted_for_contest_at,omitempty"`
	IsRealNews             *bool      `json:"is_real_news,omitempty"`
	SummarizedAt           *time.Time `json:"summarized_at,omitempty"`
}

// IsPendingPublish reports whether a publish has been requested but not
// completed yet.
func (p *Post) IsPendingPublish() bool {
	return p.PublishRequestAt != nil && p.PublishedAt == nil
}

// FeatureRecord is the persisted per-bot feature state: which feature type,
// and its current (migrated) configuration.
type FeatureRecord struct {
	ID        string                 `json:"id"`
	BotID     string                 `json:"bot_id"`
	Type      string                 `json:"type"`
	Config    map[string]interface{} `json:"config"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Airdrop is one token transfer owed to a contest winner. TransferredAt and
// TransactionID stay nil until the on-chain transfer completed.
type Airdrop struct {
	ID            string     `json:"id"`
	BotID         string     `json:"bot_id"`
	PostID        string     `json:"post_id"`
	AccountUserID string     `json:"account_user_id"`
	Address       string     `json:"address"`
	TokenAmount   float64    `json:"token_amount"`
	CreatedAt     time.Time  `json:"created_at"`
	TransferredAt *time.Time `json:"transferred_at,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"`
}
