package botfeature

import (
	"context"
	"time"

	"github.com/TriBrain/TweetAgent/internal/metrics"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

const defaultTick = 5 * time.Second

// Scheduler drives the scheduled features of one bot. Features of the same
// bot run strictly serially; concurrency exists only across bots, each with
// its own Scheduler.
type Scheduler struct {
	bundle  *Bundle
	logger  logging.Logger
	tick    time.Duration
	lastRun map[string]time.Time
}

func NewScheduler(bundle *Bundle, logger logging.Logger) *Scheduler {
	return &Scheduler{
		bundle:  bundle,
		logger:  logger,
		tick:    defaultTick,
		lastRun: make(map[string]time.Time),
	}
}

// Run loops until the context is cancelled. The first tick fires
// immediately so a fresh deployment does not idle for a full interval.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.WithFields(logging.Fields{
		"bot":      s.bundle.Bot().Name,
		"features": len(s.bundle.Features()),
	}).Info("Feature scheduler started")

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	s.runDue(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			s.logger.WithField("bot", s.bundle.Bot().Name).Info("Feature scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.runDue(ctx, now)
		}
	}
}

// runDue executes every enabled scheduled feature whose interval elapsed.
// lastRun advances whether the execution succeeded or not, so a persistently
// failing feature retries at its own cadence instead of every tick.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	for _, feature := range s.bundle.Features() {
		scheduled, ok := feature.(ScheduledFeature)
		if !ok {
			continue
		}
		if enabled, _ := feature.Config()["enabled"].(bool); !enabled {
			continue
		}
		interval := intervalOf(feature)
		if interval <= 0 {
			continue
		}
		last := s.lastRun[feature.Type()]
		if !last.IsZero() && now.Sub(last) < interval {
			continue
		}
		s.lastRun[feature.Type()] = now
		s.execute(ctx, scheduled)
		if ctx.Err() != nil {
			return
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, feature ScheduledFeature) {
	bot := s.bundle.Bot()
	start := time.Now()
	status := "ok"

	defer func() {
		if recovered := recover(); recovered != nil {
			status = "panic"
			s.logger.WithFields(logging.Fields{
				"bot":     bot.Name,
				"feature": feature.Type(),
				"panic":   recovered,
			}).Error("Feature execution panicked")
		}
		metrics.FeatureRuns.WithLabelValues(bot.Name, feature.Type(), status).Inc()
		metrics.FeatureRunDuration.WithLabelValues(bot.Name, feature.Type()).Observe(time.Since(start).Seconds())
	}()

	if err := feature.ScheduledExecution(ctx); err != nil {
		status = "error"
		s.logger.WithError(err).WithFields(logging.Fields{
			"bot":     bot.Name,
			"feature": feature.Type(),
		}).Error("Feature execution failed")
	}
}

func intervalOf(feature Feature) time.Duration {
	switch value := feature.Config()["interval_seconds"].(type) {
	case float64:
		return time.Duration(value * float64(time.Second))
	case int:
		return time.Duration(value) * time.Second
	default:
		return 0
	}
}
