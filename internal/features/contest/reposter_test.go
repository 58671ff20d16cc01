package contest

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
)

var reposterTestColumns = []string{
	"id", "bot_id", "platform_post_id", "parent_post_id", "quoted_post_id", "contest_quoted_post_id",
	"author_id", "text", "created_at", "publish_request_at", "published_at", "was_reply_handled", "is_simulated",
	"worth_for_airdrop_contest", "quoted_for_contest_at", "is_real_news", "summarized_at",
}

func newTestReposter(t *testing.T) (*Reposter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	bot := &models.Bot{ID: "bot-1", Name: "testbot", PlatformUserID: "bot-user", ScreenName: "testbot"}
	record := &models.FeatureRecord{
		ID:    "rec-reposter",
		BotID: bot.ID,
		Type:  TypeReposter,
		Config: map[string]interface{}{
			"enabled":            true,
			"interval_seconds":   float64(300),
			"elect_interval_min": float64(60),
			"candidate_limit":    float64(20),
		},
	}
	deps := botfeature.Deps{
		Store:  store.New(db, logger),
		LLM:    llm.NewInvoker(failingProvider{}, logger),
		Logger: logger,
	}
	return &Reposter{BaseFeature: botfeature.NewBaseFeature(bot, record, deps)}, mock
}

func contestQuoteRow(createdAt time.Time) *sqlmock.Rows {
	quoted := "x-9"
	return sqlmock.NewRows(reposterTestColumns).AddRow(
		"quote-1", "bot-1", "x-10", nil, quoted, quoted,
		"bot-user", "Contest entry by @fan:", createdAt, nil, createdAt, true, false,
		nil, nil, nil, nil,
	)
}

func TestReposterSkipsInsideElectionWindow(t *testing.T) {
	reposter, mock := newTestReposter(t)
	mock.ExpectQuery("(?s)SELECT .+ FROM posts").
		WithArgs("bot-1").
		WillReturnRows(contestQuoteRow(time.Now().Add(-30 * time.Minute)))

	if err := reposter.ScheduledExecution(context.Background()); err != nil {
		t.Fatalf("expected a no-op inside the window, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no candidate query inside the window: %v", err)
	}
}

func TestReposterProceedsPastElectionWindow(t *testing.T) {
	reposter, mock := newTestReposter(t)
	mock.ExpectQuery("(?s)SELECT .+ FROM posts").
		WithArgs("bot-1").
		WillReturnRows(contestQuoteRow(time.Now().Add(-61 * time.Minute)))
	mock.ExpectQuery("(?s)SELECT .+ FROM posts").
		WithArgs("bot-1", 20).
		WillReturnRows(sqlmock.NewRows(reposterTestColumns))

	if err := reposter.ScheduledExecution(context.Background()); err != nil {
		t.Fatalf("expected an empty candidate pool to be a clean no-op, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected the candidate query once the window elapsed: %v", err)
	}
}

func TestReposterProceedsWithNoPriorQuote(t *testing.T) {
	reposter, mock := newTestReposter(t)
	mock.ExpectQuery("(?s)SELECT .+ FROM posts").
		WithArgs("bot-1").
		WillReturnRows(sqlmock.NewRows(reposterTestColumns))
	mock.ExpectQuery("(?s)SELECT .+ FROM posts").
		WithArgs("bot-1", 20).
		WillReturnRows(sqlmock.NewRows(reposterTestColumns))

	if err := reposter.ScheduledExecution(context.Background()); err != nil {
		t.Fatalf("expected a first run to reach the candidate query, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected both queries on a first run: %v", err)
	}
}
