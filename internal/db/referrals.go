package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreditReferral records that referredUserID was referred by referrerID and
// credits the referrer with reward tokens. It reports false when the referred
// user has already produced a referral, in which case nothing changes.
func (db *DB) CreditReferral(ctx context.Context, referrerID, referredUserID uuid.UUID, reward int, toolResultID *uuid.UUID) (bool, error) {
	if reward < 0 {
		return false, fmt.Errorf("referral reward must not be negative, got %d", reward)
	}
	if referrerID == referredUserID {
		return false, fmt.Errorf("user cannot refer themselves")
	}

	credited := false
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var referralID uuid.UUID
		err := tx.QueryRow(ctx,
			`INSERT INTO referrals (referrer_id, referred_user_id, reward_tokens, tool_result_id)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (referred_user_id) DO NOTHING
			 RETURNING id`,
			referrerID, referredUserID, reward, toolResultID,
		).Scan(&referralID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("failed to insert referral: %w", err)
		}

		var balance int
		if err := tx.QueryRow(ctx,
			`UPDATE profiles SET token_balance = token_balance + $2, updated_at = NOW()
			 WHERE id = $1
			 RETURNING token_balance`,
			referrerID, reward,
		).Scan(&balance); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to credit referrer: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO token_ledger (user_id, amount, balance_after, type, referral_id)
			 VALUES ($1, $2, $3, $4, $5)`,
			referrerID, reward, balance, LedgerReferralBonus, referralID,
		); err != nil {
			return fmt.Errorf("failed to insert referral ledger entry: %w", err)
		}

		credited = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return credited, nil
}
