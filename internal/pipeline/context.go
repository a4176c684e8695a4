package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/career-coach/internal/types"
)

// ContextStore reads the records a run is personalized with. Every read is
// scoped by the caller's id. A missing record is (nil, nil).
type ContextStore interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error)
	GetCareerProfile(ctx context.Context, userID uuid.UUID) (*types.CareerProfile, error)
	GetJobTarget(ctx context.Context, userID, jobTargetID uuid.UUID) (*types.JobTarget, error)
}

// LoadContext fetches the caller's profile, career profile and (if requested)
// job target concurrently. A job target that does not belong to userID comes
// back absent, like any other missing record.
func LoadContext(ctx context.Context, store ContextStore, userID uuid.UUID, jobTargetID *uuid.UUID) (*types.ExecutionContext, error) {
	ec := &types.ExecutionContext{UserID: userID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := store.GetProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		ec.Profile = p
		return nil
	})
	g.Go(func() error {
		cp, err := store.GetCareerProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("load career profile: %w", err)
		}
		ec.CareerProfile = cp
		return nil
	})
	if jobTargetID != nil {
		g.Go(func() error {
			jt, err := store.GetJobTarget(gctx, userID, *jobTargetID)
			if err != nil {
				return fmt.Errorf("load job target: %w", err)
			}
			if jt != nil && jt.UserID != userID {
				jt = nil
			}
			ec.JobTarget = jt
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ec, nil
}
