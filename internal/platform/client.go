package platform

import (
	"context"
	"time"
)

// DefaultMaxPostLength is the X post character limit.
const DefaultMaxPostLength = 280

// FetchedPost is a post as returned by the platform search/lookup APIs.
type FetchedPost struct {
	PlatformID       string
	AuthorID         string
	AuthorScreenName string
	Text             string
	CreatedAt        time.Time
	ParentPlatformID *string
	QuotedPlatformID *string
}

// PublishedPost is one chunk of a published thread.
type PublishedPost struct {
	PlatformID string
	Text       string
}

// PostMetrics are engagement numbers for a single post.
type PostMetrics struct {
	ImpressionCount int
	LikeCount       int
	RepostCount     int
	CommentCount    int
}

// Client is the social platform boundary. Callers split long texts into
// chunks before calling PublishThread; the client publishes them as a chained
// thread and returns the created posts in conversation order.
type Client interface {
	// SearchPostsFromAccounts returns recent posts authored by any of the
	// given screen names, oldest first.
	SearchPostsFromAccounts(ctx context.Context, accounts []string, notBefore time.Time) ([]FetchedPost, error)

	// SearchMentions returns recent posts mentioning the given user.
	SearchMentions(ctx context.Context, userID string, notBefore time.Time) ([]FetchedPost, error)

	// PublishThread publishes pre-split chunks as a thread. The first chunk
	// optionally replies to or quotes an existing post.
	PublishThread(ctx context.Context, chunks []string, replyToID, quotedID *string) ([]PublishedPost, error)

	// FetchSinglePost returns one post with its live metrics.
	FetchSinglePost(ctx context.Context, platformID string) (*FetchedPost, *PostMetrics, error)

	// MaxPostLength is the per-post character limit used by the splitter.
	MaxPostLength() int
}
