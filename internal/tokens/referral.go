package tokens

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/types"
)

// maxQualifyingRuns is the highest paid-run count that still triggers a
// referral credit. Two concurrent first runs can both observe a count of 2.
const maxQualifyingRuns = 2

// ReferralStore is the store surface the referral trigger needs.
type ReferralStore interface {
	CountPaidToolRuns(ctx context.Context, userID uuid.UUID) (int, error)
	CreditReferral(ctx context.Context, referrerID, referredUserID uuid.UUID, reward int, toolResultID *uuid.UUID) (bool, error)
}

// ReferralTrigger credits a referrer after the referred user's first paid run.
type ReferralTrigger struct {
	store  ReferralStore
	reward int
}

// NewReferralTrigger creates a trigger that credits reward tokens.
func NewReferralTrigger(store ReferralStore, reward int) *ReferralTrigger {
	return &ReferralTrigger{store: store, reward: reward}
}

// Evaluate credits the caller's referrer if this run qualifies. It reports
// whether a credit was made. Crediting is at most once per referred user;
// the store's uniqueness on the referred user enforces that.
func (t *ReferralTrigger) Evaluate(ctx context.Context, profile *types.Profile, cost int, resultID uuid.UUID) (bool, error) {
	if cost <= 0 || t.reward <= 0 || profile == nil || profile.ReferredBy == nil {
		return false, nil
	}

	runs, err := t.store.CountPaidToolRuns(ctx, profile.ID)
	if err != nil {
		return false, fmt.Errorf("failed to count paid runs: %w", err)
	}
	if runs > maxQualifyingRuns {
		return false, nil
	}

	credited, err := t.store.CreditReferral(ctx, *profile.ReferredBy, profile.ID, t.reward, &resultID)
	if err != nil {
		return false, fmt.Errorf("failed to credit referrer %s: %w", *profile.ReferredBy, err)
	}
	return credited, nil
}
