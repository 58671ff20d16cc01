package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TriBrain/TweetAgent/internal/models"
)

const accountColumns = "user_id, screen_name, airdrop_address, created_at"

func scanAccount(row rowScanner) (*models.Account, error) {
	var account models.Account
	if err := row.Scan(&account.UserID, &account.ScreenName, &account.AirdropAddress, &account.CreatedAt); err != nil {
		return nil, err
	}
	return &account, nil
}

// EnsureAccount upserts a platform account by user id. The screen name is
// refreshed when a non-empty one is provided.
func (s *Store) EnsureAccount(ctx context.Context, userID, screenName string) (*models.Account, error) {
	if userID == "" {
		return nil, errors.New("account user id is required")
	}
	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		INSERT INTO accounts (user_id, screen_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET screen_name = CASE WHEN EXCLUDED.screen_name <> '' THEN EXCLUDED.screen_name ELSE accounts.screen_name END
		RETURNING `+accountColumns+`
	`, userID, screenName))
	if err != nil {
		return nil, fmt.Errorf("ensure account: %w", err)
	}
	return account, nil
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	account, err := scanAccount(s.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE user_id = $1
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// SetAirdropAddress stores the payout address a user provided for the
// airdrop contest.
func (s *Store) SetAirdropAddress(ctx context.Context, userID, address string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET airdrop_address = $2
		WHERE user_id = $1
	`, userID, address)
	if err != nil {
		return fmt.Errorf("set airdrop address: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set airdrop address: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
