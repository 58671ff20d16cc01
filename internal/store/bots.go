package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/TriBrain/TweetAgent/internal/models"
)

const botColumns = "id, name, platform_user_id, screen_name, created_at"

func scanBot(row rowScanner) (*models.Bot, error) {
	var bot models.Bot
	if err := row.Scan(&bot.ID, &bot.Name, &bot.PlatformUserID, &bot.ScreenName, &bot.CreatedAt); err != nil {
		return nil, err
	}
	return &bot, nil
}

func (s *Store) ListBots(ctx context.Context) ([]*models.Bot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+botColumns+`
		FROM bots
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var bots []*models.Bot
	for rows.Next() {
		bot, err := scanBot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bot: %w", err)
		}
		bots = append(bots, bot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bots: %w", err)
	}
	return bots, nil
}

func (s *Store) GetBot(ctx context.Context, id string) (*models.Bot, error) {
	bot, err := scanBot(s.db.QueryRowContext(ctx, `
		SELECT `+botColumns+`
		FROM bots
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bot: %w", err)
	}
	return bot, nil
}

// CreateBot inserts a new bot identity.
func (s *Store) CreateBot(ctx context.Context, name, platformUserID, screenName string) (*models.Bot, error) {
	bot, err := scanBot(s.db.QueryRowContext(ctx, `
		INSERT INTO bots (id, name, platform_user_id, screen_name)
		VALUES ($1, $2, $3, $4)
		RETURNING `+botColumns+`
	`, uuid.NewString(), name, platformUserID, screenName))
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return bot, nil
}
