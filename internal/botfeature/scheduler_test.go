package botfeature

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/TriBrain/TweetAgent/internal/models"
)

type fakeScheduled struct {
	BaseFeature
	runs  int
	err   error
	panic bool
}

func (f *fakeScheduled) ScheduledExecution(ctx context.Context) error {
	f.runs++
	if f.panic {
		panic("boom")
	}
	return f.err
}

func newFakeScheduled(t *testing.T, featureType string, intervalSeconds int, enabled bool) *fakeScheduled {
	t.Helper()
	bot := &models.Bot{ID: "bot-1", Name: "testbot", PlatformUserID: "u1", ScreenName: "testbot"}
	record := &models.FeatureRecord{
		ID:    featureType + "-record",
		BotID: bot.ID,
		Type:  featureType,
		Config: map[string]interface{}{
			"enabled":          enabled,
			"interval_seconds": float64(intervalSeconds),
		},
	}
	return &fakeScheduled{BaseFeature: NewBaseFeature(bot, record, Deps{Logger: logrus.New()})}
}

func newTestScheduler(features ...Feature) *Scheduler {
	bundle := &Bundle{
		bot:      &models.Bot{ID: "bot-1", Name: "testbot"},
		features: features,
	}
	return NewScheduler(bundle, logrus.New())
}

func TestSchedulerRunsOnIntervalBoundaries(t *testing.T) {
	feature := newFakeScheduled(t, "fake", 30, true)
	scheduler := newTestScheduler(feature)

	start := time.Now()
	scheduler.runDue(context.Background(), start)
	if feature.runs != 1 {
		t.Fatalf("expected first tick to run immediately, got %d runs", feature.runs)
	}

	scheduler.runDue(context.Background(), start.Add(29*time.Second))
	if feature.runs != 1 {
		t.Fatalf("expected no run before the interval elapsed, got %d runs", feature.runs)
	}

	scheduler.runDue(context.Background(), start.Add(30*time.Second))
	if feature.runs != 2 {
		t.Fatalf("expected a run once the interval elapsed, got %d runs", feature.runs)
	}

	scheduler.runDue(context.Background(), start.Add(65*time.Second))
	if feature.runs != 3 {
		t.Fatalf("expected a third run at t+65s, got %d runs", feature.runs)
	}
}

func TestSchedulerSkipsDisabledFeatures(t *testing.T) {
	feature := newFakeScheduled(t, "fake", 30, false)
	scheduler := newTestScheduler(feature)

	scheduler.runDue(context.Background(), time.Now())
	if feature.runs != 0 {
		t.Fatalf("expected disabled feature not to run, got %d runs", feature.runs)
	}
}

func TestSchedulerAdvancesLastRunOnFailure(t *testing.T) {
	feature := newFakeScheduled(t, "fake", 30, true)
	feature.err = errors.New("execution failed")
	scheduler := newTestScheduler(feature)

	start := time.Now()
	scheduler.runDue(context.Background(), start)
	scheduler.runDue(context.Background(), start.Add(time.Second))
	if feature.runs != 1 {
		t.Fatalf("expected a failing feature to wait for its interval, got %d runs", feature.runs)
	}
}

func TestSchedulerRecoversFromPanics(t *testing.T) {
	panicking := newFakeScheduled(t, "panics", 30, true)
	panicking.panic = true
	healthy := newFakeScheduled(t, "healthy", 30, true)
	scheduler := newTestScheduler(panicking, healthy)

	scheduler.runDue(context.Background(), time.Now())
	if panicking.runs != 1 {
		t.Fatalf("expected the panicking feature to have run, got %d", panicking.runs)
	}
	if healthy.runs != 1 {
		t.Fatalf("expected the healthy feature to run despite the sibling panic, got %d", healthy.runs)
	}
}

func TestSchedulerIgnoresUnscheduledFeatures(t *testing.T) {
	bot := &models.Bot{ID: "bot-1", Name: "testbot"}
	record := &models.FeatureRecord{
		ID:     "plain-record",
		BotID:  bot.ID,
		Type:   "plain",
		Config: map[string]interface{}{"enabled": true},
	}
	plain := &struct{ BaseFeature }{NewBaseFeature(bot, record, Deps{Logger: logrus.New()})}
	scheduler := newTestScheduler(plain)

	// Must not panic or attempt execution.
	scheduler.runDue(context.Background(), time.Now())
}
