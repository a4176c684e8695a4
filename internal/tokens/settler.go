// Package tokens settles tool runs against the prepaid token ledger and
// credits referrers.
package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/db"
	"github.com/jonathan/career-coach/internal/logx"
)

// DefaultSettleTimeout bounds one settlement, independent of the caller's request.
const DefaultSettleTimeout = 10 * time.Second

// Ledger is the store operation settlement needs.
type Ledger interface {
	SpendTokens(ctx context.Context, userID uuid.UUID, amount int, toolResultID uuid.UUID) (*db.SpendResult, error)
}

// Settler debits callers for persisted tool results.
type Settler struct {
	ledger  Ledger
	timeout time.Duration
}

// NewSettler creates a Settler. A non-positive timeout uses DefaultSettleTimeout.
func NewSettler(ledger Ledger, timeout time.Duration) *Settler {
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	return &Settler{ledger: ledger, timeout: timeout}
}

// Settle charges cost tokens for resultID. Free runs (cost 0) are a no-op and
// return nil, nil. A result that was already settled is not charged again and
// is not an error.
//
// Settlement runs detached from ctx cancellation: once a result is stored the
// charge must go through even if the client has gone away.
func (s *Settler) Settle(ctx context.Context, userID uuid.UUID, cost int, resultID uuid.UUID) (*db.SpendResult, error) {
	if cost < 0 {
		return nil, fmt.Errorf("tool cost must not be negative, got %d", cost)
	}
	if cost == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	res, err := s.ledger.SpendTokens(ctx, userID, cost, resultID)
	if errors.Is(err, db.ErrAlreadySettled) {
		logx.Debug().
			Str("user_id", userID.String()).
			Str("result_id", resultID.String()).
			Msg("tool result already settled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle %d tokens for result %s: %w", cost, resultID, err)
	}
	return res, nil
}
