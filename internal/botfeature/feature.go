// Package botfeature defines the contracts every bot capability implements,
// the registry that knows how to build them, and the per-bot scheduler loop
// that drives them.
package botfeature

import (
	"context"

	"github.com/TriBrain/TweetAgent/internal/chain"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/metrics"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/platform"
	"github.com/TriBrain/TweetAgent/internal/prompts"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// Group buckets related feature types for presentation.
type Group string

const (
	GroupCore    Group = "xcore"
	GroupContest Group = "contest"
	GroupNews    Group = "news"
)

// Feature is one capability instantiated for one bot. Instances live for the
// lifetime of the bot's scheduler and are never shared across bots.
type Feature interface {
	Type() string
	Bot() *models.Bot
	Config() map[string]interface{}
	Initialize(ctx context.Context) error
}

// ScheduledFeature runs on a cadence. The configured interval comes from the
// feature's own config ("interval_seconds").
type ScheduledFeature interface {
	Feature
	ScheduledExecution(ctx context.Context) error
}

// ReplyStudier contributes a reply fragment for a mention. An empty fragment
// means the feature has nothing to say about this post.
type ReplyStudier interface {
	Feature
	StudyReply(ctx context.Context, mention *models.Post, parentChain []*models.Post) (string, error)
}

// FeatureSource exposes the sibling features of the same bot, so aggregating
// features can consult them.
type FeatureSource interface {
	Features() []Feature
}

// Deps carries the shared collaborators a feature may need. The registry
// hands the same Deps to every feature of a bot.
type Deps struct {
	Store      *store.Store
	Platform   platform.Client
	LLM        *llm.Invoker
	Transfer   chain.TransferClient
	Dispatcher *events.Dispatcher
	Prompts    *prompts.Bundle
	Logger     logging.Logger
	Features   FeatureSource
}

// BaseFeature is the common embedding for concrete features: identity,
// migrated config and collaborators, plus typed config accessors.
type BaseFeature struct {
	bot    *models.Bot
	record *models.FeatureRecord
	Deps   Deps
}

func NewBaseFeature(bot *models.Bot, record *models.FeatureRecord, deps Deps) BaseFeature {
	return BaseFeature{bot: bot, record: record, Deps: deps}
}

func (f *BaseFeature) Type() string { return f.record.Type }

func (f *BaseFeature) Bot() *models.Bot { return f.bot }

func (f *BaseFeature) Config() map[string]interface{} { return f.record.Config }

func (f *BaseFeature) Record() *models.FeatureRecord { return f.record }

// Initialize is a no-op by default; features override it when they have
// startup work.
func (f *BaseFeature) Initialize(ctx context.Context) error { return nil }

// ConfigBool reads a bool config key, false when absent or mistyped.
func (f *BaseFeature) ConfigBool(key string) bool {
	value, _ := f.record.Config[key].(bool)
	return value
}

// ConfigString reads a string config key, "" when absent or mistyped.
func (f *BaseFeature) ConfigString(key string) string {
	value, _ := f.record.Config[key].(string)
	return value
}

// ConfigFloat reads a numeric config key. JSON round-trips numbers as
// float64 while defaults may be written as int.
func (f *BaseFeature) ConfigFloat(key string) float64 {
	switch value := f.record.Config[key].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	case int64:
		return float64(value)
	default:
		return 0
	}
}

// ConfigInt reads a numeric config key truncated to int.
func (f *BaseFeature) ConfigInt(key string) int {
	return int(f.ConfigFloat(key))
}

// ConfigStrings reads a string-slice config key. JSON round-trips arrays as
// []interface{}.
func (f *BaseFeature) ConfigStrings(key string) []string {
	switch value := f.record.Config[key].(type) {
	case []string:
		return value
	case []interface{}:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Enabled reports whether the feature is switched on in its config.
func (f *BaseFeature) Enabled() bool { return f.ConfigBool("enabled") }

// Logger returns the shared logger scoped to this feature and bot.
func (f *BaseFeature) Logger() logging.Logger {
	return f.Deps.Logger
}

// Log returns an entry-builder with the feature identity attached.
func (f *BaseFeature) Log() logging.Fields {
	return logging.Fields{
		"bot":     f.bot.Name,
		"feature": f.record.Type,
	}
}

// Invoke runs an LLM request through the shared invoker and tracks the call.
func (f *BaseFeature) Invoke(ctx context.Context, req llm.InvokeRequest) (*llm.InvokeResult, error) {
	result, err := f.Deps.LLM.FullyInvoke(ctx, req)
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case req.StructuredSchema != nil && !result.Structured:
		status = "unstructured"
	}
	metrics.LLMCalls.WithLabelValues(f.record.Type, status).Inc()
	return result, err
}

// Prompt returns the named prompt template from the shared bundle.
func (f *BaseFeature) Prompt(name string) string {
	if f.Deps.Prompts == nil {
		return ""
	}
	return f.Deps.Prompts.Get(name)
}

// Emit publishes an observer event; a nil dispatcher drops it.
func (f *BaseFeature) Emit(topic, op string, data interface{}) {
	if f.Deps.Dispatcher != nil {
		f.Deps.Dispatcher.Emit(topic, op, data)
	}
}

// Provider describes one feature type: identity, config contract and factory.
type Provider struct {
	Type          string
	Group         Group
	Title         string
	Description   string
	ConfigSchema  Schema
	DefaultConfig map[string]interface{}
	New           func(base BaseFeature) (Feature, error)
}
