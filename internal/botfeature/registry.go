package botfeature

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

// ErrUnknownFeature is returned when a stored record references a feature
// type no provider claims, typically after a type was removed.
var ErrUnknownFeature = errors.New("unknown feature type")

// Registry holds every available feature provider. Registration happens once
// at startup; afterwards the registry is read-only and safe for concurrent
// use.
type Registry struct {
	providers map[string]*Provider
	order     []string
	logger    logging.Logger
}

func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{
		providers: make(map[string]*Provider),
		logger:    logger,
	}
}

// Register adds a provider. A duplicate type is a programming error and
// fails so the service refuses to start.
func (r *Registry) Register(provider *Provider) error {
	if provider.Type == "" {
		return errors.New("feature provider has no type")
	}
	if provider.New == nil {
		return fmt.Errorf("feature provider %s has no factory", provider.Type)
	}
	if _, exists := r.providers[provider.Type]; exists {
		return fmt.Errorf("feature provider %s registered twice", provider.Type)
	}
	r.providers[provider.Type] = provider
	r.order = append(r.order, provider.Type)
	return nil
}

// Provider looks a provider up by type.
func (r *Registry) Provider(featureType string) (*Provider, error) {
	provider, ok := r.providers[featureType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, featureType)
	}
	return provider, nil
}

// Types returns all registered types in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Providers returns all registered providers sorted by type, for the API
// surface.
func (r *Registry) Providers() []*Provider {
	out := make([]*Provider, 0, len(r.providers))
	for _, provider := range r.providers {
		out = append(out, provider)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// FeatureStore is the slice of the datastore the registry needs.
type FeatureStore interface {
	UpsertFeatureRecord(ctx context.Context, botID, featureType string) (*models.FeatureRecord, error)
	UpdateFeatureConfig(ctx context.Context, recordID string, config map[string]interface{}) error
	ListFeatureRecords(ctx context.Context, botID string) ([]*models.FeatureRecord, error)
}

// EnsureRequiredFeatures guarantees every registered type has a record for
// the bot and that each stored config is reconciled against the current
// defaults. Safe to call on every startup.
func (r *Registry) EnsureRequiredFeatures(ctx context.Context, featureStore FeatureStore, bot *models.Bot) ([]*models.FeatureRecord, error) {
	records := make([]*models.FeatureRecord, 0, len(r.order))
	for _, featureType := range r.order {
		provider := r.providers[featureType]
		record, err := featureStore.UpsertFeatureRecord(ctx, bot.ID, featureType)
		if err != nil {
			return nil, fmt.Errorf("ensure feature %s: %w", featureType, err)
		}
		migrated := MergeAndPrune(provider.DefaultConfig, record.Config)
		if !reflect.DeepEqual(migrated, record.Config) {
			if err := featureStore.UpdateFeatureConfig(ctx, record.ID, migrated); err != nil {
				return nil, fmt.Errorf("migrate feature %s config: %w", featureType, err)
			}
			r.logger.WithFields(logging.Fields{
				"bot":     bot.Name,
				"feature": featureType,
			}).Info("Migrated feature config to current defaults")
			record.Config = migrated
		}
		records = append(records, record)
	}
	return records, nil
}

// Bundle is the set of live feature instances of one bot.
type Bundle struct {
	bot      *models.Bot
	features []Feature
}

func (b *Bundle) Bot() *models.Bot { return b.bot }

// Features returns the instances in registration order.
func (b *Bundle) Features() []Feature { return b.features }

// Feature returns the instance of the given type, or nil.
func (b *Bundle) Feature(featureType string) Feature {
	for _, feature := range b.features {
		if feature.Type() == featureType {
			return feature
		}
	}
	return nil
}

// Instantiate builds one feature from its stored record: migrate the config,
// validate it against the provider schema, construct, sanity-check the
// cadence of scheduled features and run Initialize.
func (r *Registry) Instantiate(ctx context.Context, bot *models.Bot, record *models.FeatureRecord, deps Deps) (Feature, error) {
	provider, err := r.Provider(record.Type)
	if err != nil {
		return nil, err
	}

	migrated := *record
	migrated.Config = MergeAndPrune(provider.DefaultConfig, record.Config)
	if err := provider.ConfigSchema.Validate(migrated.Config); err != nil {
		return nil, fmt.Errorf("feature %s config invalid: %w", record.Type, err)
	}

	feature, err := provider.New(NewBaseFeature(bot, &migrated, deps))
	if err != nil {
		return nil, fmt.Errorf("construct feature %s: %w", record.Type, err)
	}

	if _, scheduled := feature.(ScheduledFeature); scheduled {
		interval, _ := migrated.Config["interval_seconds"].(float64)
		if interval <= 0 {
			if raw, ok := migrated.Config["interval_seconds"].(int); ok {
				interval = float64(raw)
			}
		}
		if interval <= 0 {
			return nil, fmt.Errorf("scheduled feature %s has no interval_seconds", record.Type)
		}
	}

	if err := feature.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initialize feature %s: %w", record.Type, err)
	}
	return feature, nil
}

// BuildBundle instantiates every stored record for a bot. The bundle itself
// backs Deps.Features, so features can look siblings up once construction
// finished.
func (r *Registry) BuildBundle(ctx context.Context, bot *models.Bot, records []*models.FeatureRecord, deps Deps) (*Bundle, error) {
	bundle := &Bundle{bot: bot}
	deps.Features = bundle

	ordered := make([]*models.FeatureRecord, 0, len(records))
	byType := make(map[string]*models.FeatureRecord, len(records))
	for _, record := range records {
		byType[record.Type] = record
	}
	for _, featureType := range r.order {
		if record, ok := byType[featureType]; ok {
			ordered = append(ordered, record)
			delete(byType, featureType)
		}
	}
	for _, record := range records {
		if _, leftover := byType[record.Type]; leftover {
			ordered = append(ordered, record)
		}
	}

	for _, record := range ordered {
		feature, err := r.Instantiate(ctx, bot, record, deps)
		if errors.Is(err, ErrUnknownFeature) {
			r.logger.WithFields(logging.Fields{
				"bot":     bot.Name,
				"feature": record.Type,
			}).Warn("Skipping stored feature with no provider")
			continue
		}
		if err != nil {
			return nil, err
		}
		bundle.features = append(bundle.features, feature)
	}
	return bundle, nil
}
