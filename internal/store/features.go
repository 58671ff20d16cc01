package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/TriBrain/TweetAgent/internal/models"
)

const featureColumns = "id, bot_id, type, config, created_at, updated_at"

func scanFeatureRecord(row rowScanner) (*models.FeatureRecord, error) {
	var record models.FeatureRecord
	var configJSON []byte
	if err := row.Scan(&record.ID, &record.BotID, &record.Type, &configJSON, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return nil, err
	}
	record.Config = map[string]interface{}{}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &record.Config); err != nil {
			// Malformed stored config degrades to an empty config; the
			// migration pass will restore defaults.
			record.Config = map[string]interface{}{}
		}
	}
	return &record, nil
}

// UpsertFeatureRecord guarantees a feature record exists for (bot, type).
// An existing record is returned untouched, so calling repeatedly is safe.
func (s *Store) UpsertFeatureRecord(ctx context.Context, botID, featureType string) (*models.FeatureRecord, error) {
	record, err := scanFeatureRecord(s.db.QueryRowContext(ctx, `
		INSERT INTO bot_features (id, bot_id, type, config)
		VALUES ($1, $2, $3, '{}')
		ON CONFLICT (bot_id, type) DO UPDATE SET type = EXCLUDED.type
		RETURNING `+featureColumns+`
	`, uuid.NewString(), botID, featureType))
	if err != nil {
		return nil, fmt.Errorf("upsert feature record: %w", err)
	}
	return record, nil
}

func (s *Store) ListFeatureRecords(ctx context.Context, botID string) ([]*models.FeatureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+featureColumns+`
		FROM bot_features
		WHERE bot_id = $1
		ORDER BY type
	`, botID)
	if err != nil {
		return nil, fmt.Errorf("list feature records: %w", err)
	}
	defer rows.Close()

	var records []*models.FeatureRecord
	for rows.Next() {
		record, err := scanFeatureRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feature record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature records: %w", err)
	}
	return records, nil
}

func (s *Store) GetFeatureRecord(ctx context.Context, botID, featureType string) (*models.FeatureRecord, error) {
	record, err := scanFeatureRecord(s.db.QueryRowContext(ctx, `
		SELECT `+featureColumns+`
		FROM bot_features
		WHERE bot_id = $1 AND type = $2
	`, botID, featureType))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feature record: %w", err)
	}
	return record, nil
}

// UpdateFeatureConfig replaces the stored config for a feature record.
func (s *Store) UpdateFeatureConfig(ctx context.Context, recordID string, config map[string]interface{}) error {
	configJSON, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode feature config: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE bot_features
		SET config = $2, updated_at = NOW()
		WHERE id = $1
	`, recordID, configJSON)
	if err != nil {
		return fmt.Errorf("update feature config: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update feature config: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
