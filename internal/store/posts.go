package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/TriBrain/TweetAgent/internal/models"
)

const postColumns = `id, bot_id, platform_post_id, parent_post_id, quoted_post_id, contest_quoted_post_id,
	author_id, text, created_at, publish_request_at, published_at, was_reply_handled, is_simulated,
	worth_for_airdrop_contest, quoted_for_contest_at, is_real_news, summarized_at`

// Claims from crashed runs expire so a stuck workflow never stalls the
// pipeline forever.
const (
	publishClaimTTL = "5 minutes"
	replyClaimTTL   = "10 minutes"
)

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	if err := row.Scan(
		&post.ID, &post.BotID, &post.PlatformPostID, &post.ParentPostID, &post.QuotedPostID,
		&post.ContestQuotedPostID, &post.AuthorID, &post.Text, &post.CreatedAt,
		&post.PublishRequestAt, &post.PublishedAt, &post.WasReplyHandled, &post.IsSimulated,
		&post.WorthForAirdropContest, &post.QuotedForContestAt, &post.IsRealNews, &post.SummarizedAt,
	); err != nil {
		return nil, err
	}
	return &post, nil
}

// CreatePostParams are the optional fields of a new post. Text, bot and
// author are always required.
type CreatePostParams struct {
	BotID               string
	AuthorID            string
	Text                string
	PlatformPostID      *string
	ParentPostID        *string
	QuotedPostID        *string
	ContestQuotedPostID *string
	PublishRequestAt    *time.Time
	PublishedAt         *time.Time
	WasReplyHandled     bool
	IsSimulated         bool
}

func (s *Store) CreatePost(ctx context.Context, params CreatePostParams) (*models.Post, error) {
	if params.Text == "" {
		return nil, errors.New("post text is required")
	}
	if params.BotID == "" || params.AuthorID == "" {
		return nil, errors.New("post bot and author are required")
	}

	post, err := scanPost(s.db.QueryRowContext(ctx, `
		INSERT INTO posts (id, bot_id, platform_post_id, parent_post_id, quoted_post_id,
			contest_quoted_post_id, author_id, text, publish_request_at, published_at,
			was_reply_handled, is_simulated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+postColumns+`
	`,
		uuid.NewString(), params.BotID, params.PlatformPostID, params.ParentPostID,
		params.QuotedPostID, params.ContestQuotedPostID, params.AuthorID, params.Text,
		params.PublishRequestAt, params.PublishedAt, params.WasReplyHandled, params.IsSimulated,
	))
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return post, nil
}

func (s *Store) GetPost(ctx context.Context, id string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// PostByPlatformID looks a post up by its platform id, scoped to one bot.
func (s *Store) PostByPlatformID(ctx context.Context, botID, platformPostID string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1 AND platform_post_id = $2
	`, botID, platformPostID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get post by platform id: %w", err)
	}
	return post, nil
}

// ChildPosts returns all stored posts whose parent is the given platform id.
func (s *Store) ChildPosts(ctx context.Context, botID, parentPlatformID string) ([]*models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1 AND parent_post_id = $2
		ORDER BY created_at
	`, botID, parentPlatformID)
	if err != nil {
		return nil, fmt.Errorf("list child posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ListPosts returns recent posts for a bot, optionally below one parent.
func (s *Store) ListPosts(ctx context.Context, botID string, parentPlatformID *string, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows *sql.Rows
	var err error
	if parentPlatformID != nil {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE bot_id = $1 AND parent_post_id = $2
			ORDER BY created_at DESC
			LIMIT $3
		`, botID, *parentPlatformID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+postColumns+`
			FROM posts
			WHERE bot_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		`, botID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// ClaimNextUnhandledPost atomically claims the oldest post that still needs a
// reply pass. The claim is a conditional update, so concurrent schedulers
// (or process replicas) never select the same post twice. Stale claims
// expire after a TTL.
func (s *Store) ClaimNextUnhandledPost(ctx context.Context, botID, excludeAuthorID string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		UPDATE posts SET reply_claimed_at = NOW()
		WHERE id = (
			SELECT id FROM posts
			WHERE bot_id = $1
				AND was_reply_handled = FALSE
				AND author_id <> $2
				AND (reply_claimed_at IS NULL OR reply_claimed_at < NOW() - INTERVAL '`+replyClaimTTL+`')
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+postColumns+`
	`, botID, excludeAuthorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim unhandled post: %w", err)
	}
	return post, nil
}

// MarkReplyHandled finalizes one aggregation pass: the post is never
// reprocessed, whether or not a reply was produced.
func (s *Store) MarkReplyHandled(ctx context.Context, postID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET was_reply_handled = TRUE, reply_claimed_at = NULL
		WHERE id = $1
	`, postID); err != nil {
		return fmt.Errorf("mark reply handled: %w", err)
	}
	return nil
}

// ClaimNextPendingPost atomically claims one post that awaits publication.
func (s *Store) ClaimNextPendingPost(ctx context.Context, botID string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		UPDATE posts SET publish_claimed_at = NOW()
		WHERE id = (
			SELECT id FROM posts
			WHERE bot_id = $1
				AND publish_request_at IS NOT NULL
				AND published_at IS NULL
				AND (publish_claimed_at IS NULL OR publish_claimed_at < NOW() - INTERVAL '`+publishClaimTTL+`')
			ORDER BY publish_request_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+postColumns+`
	`, botID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending post: %w", err)
	}
	return post, nil
}

// ReleasePublishClaim returns a claimed post to the pending pool after a
// failed publish attempt, so the next run retries it.
func (s *Store) ReleasePublishClaim(ctx context.Context, postID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET publish_claimed_at = NULL
		WHERE id = $1
	`, postID); err != nil {
		return fmt.Errorf("release publish claim: %w", err)
	}
	return nil
}

// CompletePublish overwrites the pending post with what was actually
// published: the platform may have altered or truncated the text.
func (s *Store) CompletePublish(ctx context.Context, postID, platformPostID, text string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		UPDATE posts
		SET platform_post_id = $2,
			text = $3,
			published_at = NOW(),
			publish_claimed_at = NULL,
			was_reply_handled = TRUE
		WHERE id = $1
		RETURNING `+postColumns+`
	`, postID, platformPostID, text))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("complete publish: %w", err)
	}
	return post, nil
}

// SetWorthForContest persists the contest judgment exactly once. A post that
// already carries a non-null judgment is left untouched, which makes the
// write idempotent-safe to retry.
func (s *Store) SetWorthForContest(ctx context.Context, postID string, worth bool) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET worth_for_airdrop_contest = $2
		WHERE id = $1 AND worth_for_airdrop_contest IS NULL
	`, postID, worth)
	if err != nil {
		return false, fmt.Errorf("set worth for contest: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set worth for contest: %w", err)
	}
	return affected > 0, nil
}

// MostRecentContestQuote returns the newest post quoting an elected contest
// post, used to rate limit the reposter.
func (s *Store) MostRecentContestQuote(ctx context.Context, botID string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1 AND contest_quoted_post_id IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, botID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get most recent contest quote: %w", err)
	}
	return post, nil
}

// ContestCandidates lists contest-worthy posts that have not been elected for
// a repost yet.
func (s *Store) ContestCandidates(ctx context.Context, botID string, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1
			AND worth_for_airdrop_contest = TRUE
			AND quoted_for_contest_at IS NULL
		ORDER BY created_at
		LIMIT $2
	`, botID, limit)
	if err != nil {
		return nil, fmt.Errorf("list contest candidates: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// MarkQuotedForContest stamps an elected post so it is never elected again.
func (s *Store) MarkQuotedForContest(ctx context.Context, postID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET quoted_for_contest_at = NOW()
		WHERE id = $1
	`, postID); err != nil {
		return fmt.Errorf("mark quoted for contest: %w", err)
	}
	return nil
}

// WorthyPostsBefore lists contest-worthy posts created before the cutoff that
// have not been part of an airdrop yet.
func (s *Store) WorthyPostsBefore(ctx context.Context, botID string, cutoff time.Time, limit int) ([]*models.Post, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1
			AND worth_for_airdrop_contest = TRUE
			AND created_at < $2
			AND id NOT IN (SELECT post_id FROM airdrops WHERE bot_id = $1)
		ORDER BY created_at
		LIMIT $3
	`, botID, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list worthy posts: %w", err)
	}
	defer rows.Close()
	return collectPosts(rows)
}

// SetIsRealNews tags a source post with the news classification outcome.
func (s *Store) SetIsRealNews(ctx context.Context, postID string, isRealNews bool) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET is_real_news = $2
		WHERE id = $1
	`, postID, isRealNews); err != nil {
		return fmt.Errorf("set is real news: %w", err)
	}
	return nil
}

// NextUnclassifiedNewsPost returns the oldest post from a news source account
// that has not been classified yet.
func (s *Store) NextUnclassifiedNewsPost(ctx context.Context, botID string, sourceAccountIDs []string) (*models.Post, error) {
	if len(sourceAccountIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1
			AND author_id = ANY($2)
			AND is_real_news IS NULL
		ORDER BY created_at
		LIMIT 1
	`, botID, pq.Array(sourceAccountIDs))
	if err != nil {
		return nil, fmt.Errorf("get unclassified news post: %w", err)
	}
	defer rows.Close()
	posts, err := collectPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return posts[0], nil
}

// NextUnsummarizedNewsPost returns the oldest real-news post without a
// summary yet.
func (s *Store) NextUnsummarizedNewsPost(ctx context.Context, botID string) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts
		WHERE bot_id = $1
			AND is_real_news = TRUE
			AND summarized_at IS NULL
		ORDER BY created_at
		LIMIT 1
	`, botID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get unsummarized news post: %w", err)
	}
	return post, nil
}

// MarkSummarized stamps a news post once its summary was scheduled.
func (s *Store) MarkSummarized(ctx context.Context, postID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET summarized_at = NOW()
		WHERE id = $1
	`, postID); err != nil {
		return fmt.Errorf("mark summarized: %w", err)
	}
	return nil
}

func collectPosts(rows *sql.Rows) ([]*models.Post, error) {
	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}
