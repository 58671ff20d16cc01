package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TriBrain/TweetAgent/internal/models"
)

const airdropColumns = `id, bot_id, post_id, account_user_id, address, token_amount,
	created_at, transferred_at, transaction_id`

const transferClaimTTL = "10 minutes"

func scanAirdrop(row rowScanner) (*models.Airdrop, error) {
	var airdrop models.Airdrop
	if err := row.Scan(
		&airdrop.ID, &airdrop.BotID, &airdrop.PostID, &airdrop.AccountUserID,
		&airdrop.Address, &airdrop.TokenAmount, &airdrop.CreatedAt,
		&airdrop.TransferredAt, &airdrop.TransactionID,
	); err != nil {
		return nil, err
	}
	return &airdrop, nil
}

// CreateAirdrop records one owed transfer. The (bot, post) unique constraint
// makes a snapshot retry a no-op instead of a double payout.
func (s *Store) CreateAirdrop(ctx context.Context, botID, postID, accountUserID, address string, amount float64) (*models.Airdrop, error) {
	airdrop, err := scanAirdrop(s.db.QueryRowContext(ctx, `
		INSERT INTO airdrops (id, bot_id, post_id, account_user_id, address, token_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (bot_id, post_id) DO NOTHING
		RETURNING `+airdropColumns+`
	`, uuid.NewString(), botID, postID, accountUserID, address, amount))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("create airdrop: %w", err)
	}
	return airdrop, nil
}

// MostRecentAirdropAt returns when the last airdrop snapshot produced
// records, to enforce the snapshot cadence.
func (s *Store) MostRecentAirdropAt(ctx context.Context, botID string) (*time.Time, error) {
	var createdAt *time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(created_at)
		FROM airdrops
		WHERE bot_id = $1
	`, botID).Scan(&createdAt)
	if err != nil {
		return nil, fmt.Errorf("get most recent airdrop: %w", err)
	}
	return createdAt, nil
}

// ClaimNextPendingTransfer atomically claims one airdrop that still needs its
// on-chain transfer, with the same conditional-update semantics as post
// claims.
func (s *Store) ClaimNextPendingTransfer(ctx context.Context, botID string) (*models.Airdrop, error) {
	airdrop, err := scanAirdrop(s.db.QueryRowContext(ctx, `
		UPDATE airdrops SET transfer_claimed_at = NOW()
		WHERE id = (
			SELECT id FROM airdrops
			WHERE bot_id = $1
				AND transferred_at IS NULL
				AND (transfer_claimed_at IS NULL OR transfer_claimed_at < NOW() - INTERVAL '`+transferClaimTTL+`')
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING `+airdropColumns+`
	`, botID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending transfer: %w", err)
	}
	return airdrop, nil
}

// CompleteTransfer stores the transaction id of a finished transfer.
func (s *Store) CompleteTransfer(ctx context.Context, airdropID, transactionID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE airdrops
		SET transferred_at = NOW(), transfer_claimed_at = NULL, transaction_id = $2
		WHERE id = $1
	`, airdropID, transactionID); err != nil {
		return fmt.Errorf("complete transfer: %w", err)
	}
	return nil
}

// ReleaseTransferClaim returns a claimed airdrop to the pending pool after a
// failed transfer attempt.
func (s *Store) ReleaseTransferClaim(ctx context.Context, airdropID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE airdrops
		SET transfer_claimed_at = NULL
		WHERE id = $1
	`, airdropID); err != nil {
		return fmt.Errorf("release transfer claim: %w", err)
	}
	return nil
}
