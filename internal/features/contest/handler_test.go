package contest

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/pkg/llm"
)

type failingProvider struct{}

func (failingProvider) Complete(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Completion, error) {
	panic("model must not be consulted")
}

func newTestJudge(t *testing.T) *Handler {
	t.Helper()
	logger := logrus.New()
	bot := &models.Bot{ID: "bot-1", Name: "testbot", PlatformUserID: "bot-user", ScreenName: "testbot"}
	record := &models.FeatureRecord{
		ID:     "rec-judge",
		BotID:  bot.ID,
		Type:   TypeHandler,
		Config: map[string]interface{}{"enabled": true},
	}
	deps := botfeature.Deps{
		LLM:    llm.NewInvoker(failingProvider{}, logger),
		Logger: logger,
	}
	return &Handler{BaseFeature: botfeature.NewBaseFeature(bot, record, deps)}
}

func boolPtr(b bool) *bool { return &b }

func TestStudyReplyIgnoresPostsWithoutMention(t *testing.T) {
	judge := newTestJudge(t)
	mention := &models.Post{ID: "p1", Text: "just talking to myself"}

	fragment, err := judge.StudyReply(context.Background(), mention, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fragment != "" {
		t.Errorf("expected no fragment without a mention, got %q", fragment)
	}
}

func TestStudyReplyNeverReJudges(t *testing.T) {
	judge := newTestJudge(t)
	mention := &models.Post{ID: "p2", Text: "@testbot what about this one", AuthorID: "fan"}
	judged := &models.Post{
		ID:                     "p1",
		AuthorID:               "fan",
		Text:                   "the submitted post",
		WorthForAirdropContest: boolPtr(true),
	}

	fragment, err := judge.StudyReply(context.Background(), mention, []*models.Post{judged, mention})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fragment != "" {
		t.Errorf("expected an already judged post to be skipped, got %q", fragment)
	}
}

func TestStudyReplySkipsOwnPosts(t *testing.T) {
	judge := newTestJudge(t)
	mention := &models.Post{ID: "p2", Text: "@testbot nice post", AuthorID: "fan"}
	own := &models.Post{ID: "p1", AuthorID: "bot-user", Text: "the bot's own post"}

	fragment, err := judge.StudyReply(context.Background(), mention, []*models.Post{own, mention})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fragment != "" {
		t.Errorf("expected the bot's own post to be skipped, got %q", fragment)
	}
}

func TestStudyReplyUnresolvableConversation(t *testing.T) {
	judge := newTestJudge(t)
	mention := &models.Post{ID: "p2", Text: "@testbot judge the thread", AuthorID: "fan"}

	fragment, err := judge.StudyReply(context.Background(), mention, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fragment != "" {
		t.Errorf("expected no fragment for an unresolvable conversation, got %q", fragment)
	}
}
