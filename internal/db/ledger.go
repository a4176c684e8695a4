package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/career-coach/internal/types"
)

// Ledger entry types.
const (
	LedgerToolSpend     = "tool_spend"
	LedgerReferralBonus = "referral_bonus"
	LedgerPurchase      = "purchase"
	LedgerBonusGrant    = "bonus_grant"
	LedgerAdjustment    = "adjustment"
)

// LedgerEntry is one immutable balance movement.
type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Amount       int        `json:"amount"`
	BonusUsed    int        `json:"bonus_used"`
	BalanceAfter int        `json:"balance_after"`
	Type         string     `json:"type"`
	ToolResultID *uuid.UUID `json:"tool_result_id,omitempty"`
	ReferralID   *uuid.UUID `json:"referral_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SpendResult reports how a debit was split across balances.
type SpendResult struct {
	BonusUsed     int
	PurchasedUsed int
	BalanceAfter  int
	BonusAfter    int
}

// splitSpend consumes active bonus tokens first, then purchased tokens.
func splitSpend(amount, activeBonus, purchased int) (bonusUsed, purchasedUsed int, err error) {
	if amount > activeBonus+purchased {
		return 0, 0, ErrInsufficientTokens
	}
	bonusUsed = min(amount, activeBonus)
	return bonusUsed, amount - bonusUsed, nil
}

// SpendTokens atomically debits amount from the user and records a
// tool_spend ledger entry for toolResultID. The profile row is locked for the
// duration, so concurrent spends serialize. A second call for the same tool
// result returns ErrAlreadySettled and leaves balances unchanged.
func (db *DB) SpendTokens(ctx context.Context, userID uuid.UUID, amount int, toolResultID uuid.UUID) (*SpendResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("spend amount must be positive, got %d", amount)
	}

	var res SpendResult
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		var p types.Profile
		err := tx.QueryRow(ctx,
			`SELECT id, token_balance, bonus_tokens, bonus_expires_at
			 FROM profiles WHERE id = $1 FOR UPDATE`,
			userID,
		).Scan(&p.ID, &p.TokenBalance, &p.BonusTokens, &p.BonusExpiresAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrProfileNotFound
			}
			return fmt.Errorf("failed to lock profile: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM token_ledger WHERE tool_result_id = $1)`,
			toolResultID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check ledger: %w", err)
		}
		if exists {
			return ErrAlreadySettled
		}

		bonusUsed, purchasedUsed, err := splitSpend(amount, p.ActiveBonus(time.Now()), p.TokenBalance)
		if err != nil {
			return err
		}

		if err := tx.QueryRow(ctx,
			`UPDATE profiles
			 SET token_balance = token_balance - $2, bonus_tokens = bonus_tokens - $3, updated_at = NOW()
			 WHERE id = $1
			 RETURNING token_balance, bonus_tokens`,
			userID, purchasedUsed, bonusUsed,
		).Scan(&res.BalanceAfter, &res.BonusAfter); err != nil {
			return fmt.Errorf("failed to debit profile: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO token_ledger (user_id, amount, bonus_used, balance_after, type, tool_result_id)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			userID, -amount, bonusUsed, res.BalanceAfter, LedgerToolSpend, toolResultID,
		); err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadySettled
			}
			return fmt.Errorf("failed to insert ledger entry: %w", err)
		}

		res.BonusUsed = bonusUsed
		res.PurchasedUsed = purchasedUsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CountPaidToolRuns returns how many tool runs the user has been charged for.
func (db *DB) CountPaidToolRuns(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM token_ledger WHERE user_id = $1 AND type = $2`,
		userID, LedgerToolSpend,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count paid tool runs: %w", err)
	}
	return n, nil
}

// ListLedgerEntries returns the user's most recent ledger entries, newest first.
func (db *DB) ListLedgerEntries(ctx context.Context, userID uuid.UUID, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, amount, bonus_used, balance_after, type, tool_result_id, referral_id, created_at
		 FROM token_ledger WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.BonusUsed, &e.BalanceAfter,
			&e.Type, &e.ToolResultID, &e.ReferralID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}
