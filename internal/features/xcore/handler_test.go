package xcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/platform"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
)

type fakeLLMProvider struct {
	content string
	err     error
}

func (f *fakeLLMProvider) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Completion, error) {
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Content: f.content}, nil
}

type fakeStudier struct {
	botfeature.BaseFeature
	fragment string
	err      error
}

func (f *fakeStudier) StudyReply(ctx context.Context, mention *models.Post, parentChain []*models.Post) (string, error) {
	return f.fragment, f.err
}

type staticFeatures struct {
	features []botfeature.Feature
}

func (s *staticFeatures) Features() []botfeature.Feature { return s.features }

func testBot() *models.Bot {
	return &models.Bot{ID: "bot-1", Name: "testbot", PlatformUserID: "u1", ScreenName: "testbot"}
}

func newTestHandler(t *testing.T, provider llm.Provider, features []botfeature.Feature) *Handler {
	t.Helper()
	logger := logrus.New()
	deps := botfeature.Deps{
		Platform: platform.NewSimulatedClient(logger),
		LLM:      llm.NewInvoker(provider, logger),
		Logger:   logger,
		Features: &staticFeatures{features: features},
	}
	record := &models.FeatureRecord{
		ID:    "rec-handler",
		BotID: "bot-1",
		Type:  TypeHandler,
		Config: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": float64(30),
		},
	}
	return &Handler{BaseFeature: botfeature.NewBaseFeature(testBot(), record, deps)}
}

func newStudier(t *testing.T, featureType, fragment string, enabled bool, err error) *fakeStudier {
	t.Helper()
	record := &models.FeatureRecord{
		ID:     "rec-" + featureType,
		BotID:  "bot-1",
		Type:   featureType,
		Config: map[string]interface{}{"enabled": enabled},
	}
	base := botfeature.NewBaseFeature(testBot(), record, botfeature.Deps{Logger: logrus.New()})
	return &fakeStudier{BaseFeature: base, fragment: fragment, err: err}
}

var handlerTestColumns = []string{
	"id", "bot_id", "platform_post_id", "parent_post_id", "quoted_post_id", "contest_quoted_post_id",
	"author_id", "text", "created_at", "publish_request_at", "published_at", "was_reply_handled", "is_simulated",
	"worth_for_airdrop_contest", "quoted_for_contest_at", "is_real_news", "summarized_at",
}

func newStoreBackedHandler(t *testing.T, provider llm.Provider, features []botfeature.Feature) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	deps := botfeature.Deps{
		Store:    store.New(db, logger),
		Platform: platform.NewSimulatedClient(logger),
		LLM:      llm.NewInvoker(provider, logger),
		Logger:   logger,
		Features: &staticFeatures{features: features},
	}
	record := &models.FeatureRecord{
		ID:    "rec-handler",
		BotID: "bot-1",
		Type:  TypeHandler,
		Config: map[string]interface{}{
			"enabled":          true,
			"interval_seconds": float64(30),
		},
	}
	handler := &Handler{BaseFeature: botfeature.NewBaseFeature(testBot(), record, deps)}
	return handler, mock
}

func claimedPostRow() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(handlerTestColumns).AddRow(
		"post-1", "bot-1", nil, nil, nil, nil,
		"author-1", "@testbot hello", now, nil, nil, false, false,
		nil, nil, nil, nil,
	)
}

func TestScheduledExecutionMarksHandledWithZeroFragments(t *testing.T) {
	handler, mock := newStoreBackedHandler(t, &fakeLLMProvider{}, nil)
	mock.ExpectQuery("UPDATE posts SET reply_claimed_at").
		WithArgs("bot-1", "u1").
		WillReturnRows(claimedPostRow())
	mock.ExpectExec("UPDATE posts").
		WithArgs("post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := handler.ScheduledExecution(context.Background()); err != nil {
		t.Fatalf("expected a zero-fragment run to succeed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected the post marked handled without a reply: %v", err)
	}
}

func TestScheduledExecutionMarksHandledWhenReplyCreationFails(t *testing.T) {
	handler, mock := newStoreBackedHandler(t, &fakeLLMProvider{}, []botfeature.Feature{
		newStudier(t, "one", "a fragment", true, nil),
	})
	mock.ExpectQuery("UPDATE posts SET reply_claimed_at").
		WithArgs("bot-1", "u1").
		WillReturnRows(claimedPostRow())
	mock.ExpectQuery("INSERT INTO posts").
		WillReturnError(errors.New("insert failed"))
	mock.ExpectExec("UPDATE posts").
		WithArgs("post-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := handler.ScheduledExecution(context.Background()); err == nil {
		t.Fatal("expected the failed reply creation to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected the post marked handled despite the failure: %v", err)
	}
}

func TestCollectFragmentsGathersContributions(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{}, []botfeature.Feature{
		newStudier(t, "one", "first fragment", true, nil),
		newStudier(t, "two", "", true, nil),
		newStudier(t, "three", "third fragment", true, nil),
	})

	mention := &models.Post{ID: "p1", Text: "@testbot hello"}
	fragments := handler.collectFragments(context.Background(), mention, nil)
	if len(fragments) != 2 {
		t.Fatalf("expected 2 non-empty fragments, got %d", len(fragments))
	}
}

func TestCollectFragmentsSkipsDisabledFeatures(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{}, []botfeature.Feature{
		newStudier(t, "one", "would contribute", false, nil),
	})

	fragments := handler.collectFragments(context.Background(), &models.Post{ID: "p1"}, nil)
	if len(fragments) != 0 {
		t.Fatalf("expected no fragments from a disabled feature, got %d", len(fragments))
	}
}

func TestCollectFragmentsSurvivesFailingStudier(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{}, []botfeature.Feature{
		newStudier(t, "broken", "", true, errors.New("study failed")),
		newStudier(t, "working", "still here", true, nil),
	})

	fragments := handler.collectFragments(context.Background(), &models.Post{ID: "p1"}, nil)
	if len(fragments) != 1 || fragments[0] != "still here" {
		t.Fatalf("expected the healthy fragment to survive, got %v", fragments)
	}
}

func TestMergeFragmentsSingleFragmentBypassesModel(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{err: errors.New("must not be called")}, nil)

	merged := handler.mergeFragments(context.Background(), []string{"only one"})
	if merged != "only one" {
		t.Errorf("expected the single fragment verbatim, got %q", merged)
	}
}

func TestMergeFragmentsUsesModelOutput(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{content: "a coherent merged reply"}, nil)

	merged := handler.mergeFragments(context.Background(), []string{"first", "second"})
	if merged != "a coherent merged reply" {
		t.Errorf("expected the model's merge, got %q", merged)
	}
}

func TestMergeFragmentsFallsBackToJoin(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{err: errors.New("model down")}, nil)

	merged := handler.mergeFragments(context.Background(), []string{"first", "second"})
	if merged != "first\n\nsecond" {
		t.Errorf("expected the deterministic join fallback, got %q", merged)
	}
}

func TestMergeFragmentsFallsBackOnEmptyOutput(t *testing.T) {
	handler := newTestHandler(t, &fakeLLMProvider{content: "   "}, nil)

	merged := handler.mergeFragments(context.Background(), []string{"first", "second"})
	if merged != "first\n\nsecond" {
		t.Errorf("expected the fallback for a blank completion, got %q", merged)
	}
}
