package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
)

var postTestColumns = []string{
	"id", "bot_id", "platform_post_id", "parent_post_id", "quoted_post_id", "contest_quoted_post_id",
	"author_id", "text", "created_at", "publish_request_at", "published_at", "was_reply_handled", "is_simulated",
	"worth_for_airdrop_contest", "quoted_for_contest_at", "is_real_news", "summarized_at",
}

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, logrus.New()), mock
}

func pendingPostRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(postTestColumns).AddRow(
		"post-1", "bot-1", nil, nil, nil, nil,
		"author-1", "pending text", now, now, nil, false, false,
		nil, nil, nil, nil,
	)
}

func TestClaimNextPendingPostReturnsNilWhenEmpty(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ExpectQuery("UPDATE posts SET publish_claimed_at").
		WithArgs("bot-1").
		WillReturnError(sql.ErrNoRows)

	post, err := st.ClaimNextPendingPost(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("expected no error on an empty queue, got %v", err)
	}
	if post != nil {
		t.Errorf("expected nil post, got %+v", post)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestClaimNextPendingPostReturnsClaimedPost(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ExpectQuery("UPDATE posts SET publish_claimed_at").
		WithArgs("bot-1").
		WillReturnRows(pendingPostRow())

	post, err := st.ClaimNextPendingPost(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if post == nil || post.ID != "post-1" {
		t.Fatalf("expected the claimed post back, got %+v", post)
	}
	if !post.IsPendingPublish() {
		t.Error("expected the claimed post to be pending publish")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestClaimNextUnhandledPostExcludesAuthor(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ExpectQuery("UPDATE posts SET reply_claimed_at").
		WithArgs("bot-1", "bot-user").
		WillReturnError(sql.ErrNoRows)

	post, err := st.ClaimNextUnhandledPost(context.Background(), "bot-1", "bot-user")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if post != nil {
		t.Errorf("expected nil post, got %+v", post)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSetWorthForContestIsExactlyOnce(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ExpectExec("UPDATE posts").
		WithArgs("post-1", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE posts").
		WithArgs("post-1", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	applied, err := st.SetWorthForContest(context.Background(), "post-1", true)
	if err != nil {
		t.Fatalf("first judgment failed: %v", err)
	}
	if !applied {
		t.Error("expected the first judgment to apply")
	}

	applied, err = st.SetWorthForContest(context.Background(), "post-1", false)
	if err != nil {
		t.Fatalf("second judgment failed: %v", err)
	}
	if applied {
		t.Error("expected a second judgment to be a no-op")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCompletePublishOverwritesText(t *testing.T) {
	st, mock := newTestStore(t)
	now := time.Now()
	rows := sqlmock.NewRows(postTestColumns).AddRow(
		"post-1", "bot-1", "x-123", nil, nil, nil,
		"bot-user", "platform text", now, now, now, true, false,
		nil, nil, nil, nil,
	)
	mock.ExpectQuery("UPDATE posts").
		WithArgs("post-1", "x-123", "platform text").
		WillReturnRows(rows)

	post, err := st.CompletePublish(context.Background(), "post-1", "x-123", "platform text")
	if err != nil {
		t.Fatalf("complete publish failed: %v", err)
	}
	if post.PlatformPostID == nil || *post.PlatformPostID != "x-123" {
		t.Errorf("expected the platform id stored, got %v", post.PlatformPostID)
	}
	if post.Text != "platform text" {
		t.Errorf("expected the published text stored, got %q", post.Text)
	}
	if !post.WasReplyHandled {
		t.Error("expected a published post to be marked handled")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestCompletePublishUnknownPost(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ExpectQuery("UPDATE posts").
		WithArgs("missing", "x-1", "text").
		WillReturnError(sql.ErrNoRows)

	if _, err := st.CompletePublish(context.Background(), "missing", "x-1", "text"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMostRecentContestQuoteEmpty(t *testing.T) {
	st, mock := newTestStore(t)
	mock.ExpectQuery("(?s)SELECT .+ FROM posts").
		WithArgs("bot-1").
		WillReturnError(sql.ErrNoRows)

	post, err := st.MostRecentContestQuote(context.Background(), "bot-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if post != nil {
		t.Errorf("expected nil when no contest quote exists, got %+v", post)
	}
}

func TestCreatePostRequiresText(t *testing.T) {
	st, _ := newTestStore(t)
	if _, err := st.CreatePost(context.Background(), CreatePostParams{BotID: "b", AuthorID: "a"}); err == nil {
		t.Fatal("expected an error for an empty text")
	}
}
