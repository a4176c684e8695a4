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

const profileColumns = `id, full_name, token_balance, bonus_tokens, bonus_expires_at, referred_by, created_at, updated_at`

func scanProfile(row pgx.Row) (*types.Profile, error) {
	var p types.Profile
	err := row.Scan(&p.ID, &p.FullName, &p.TokenBalance, &p.BonusTokens,
		&p.BonusExpiresAt, &p.ReferredBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProfile returns the user's profile, or nil if none exists.
func (db *DB) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	p, err := scanProfile(db.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// ProfileInput holds the fields for creating a profile.
type ProfileInput struct {
	ID             uuid.UUID
	FullName       string
	TokenBalance   int
	BonusTokens    int
	BonusExpiresAt *time.Time
	ReferredBy     *uuid.UUID
}

// CreateProfile inserts a profile. Account provisioning lives elsewhere; this
// is used by tooling and tests.
func (db *DB) CreateProfile(ctx context.Context, in ProfileInput) (*types.Profile, error) {
	p, err := scanProfile(db.pool.QueryRow(ctx,
		`INSERT INTO profiles (id, full_name, token_balance, bonus_tokens, bonus_expires_at, referred_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+profileColumns,
		in.ID, in.FullName, in.TokenBalance, in.BonusTokens, in.BonusExpiresAt, in.ReferredBy,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// GetCareerProfile returns the user's career profile, or nil if none exists.
func (db *DB) GetCareerProfile(ctx context.Context, userID uuid.UUID) (*types.CareerProfile, error) {
	var cp types.CareerProfile
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, COALESCE(current_title, ''), COALESCE(industry, ''), years_experience,
		        skills, COALESCE(goals, ''), COALESCE(location, ''), COALESCE(resume_text, ''), updated_at
		 FROM career_profiles WHERE user_id = $1`,
		userID,
	).Scan(&cp.UserID, &cp.CurrentTitle, &cp.Industry, &cp.YearsExperience,
		&cp.Skills, &cp.Goals, &cp.Location, &cp.ResumeText, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get career profile: %w", err)
	}
	return &cp, nil
}

// UpsertCareerProfile creates or replaces the user's career profile.
func (db *DB) UpsertCareerProfile(ctx context.Context, cp *types.CareerProfile) error {
	skills := cp.Skills
	if skills == nil {
		skills = []string{}
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO career_profiles (user_id, current_title, industry, years_experience, skills, goals, location, resume_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		     current_title = $2, industry = $3, years_experience = $4, skills = $5,
		     goals = $6, location = $7, resume_text = $8, updated_at = NOW()`,
		cp.UserID, nullIfEmpty(cp.CurrentTitle), nullIfEmpty(cp.Industry), cp.YearsExperience,
		skills, nullIfEmpty(cp.Goals), nullIfEmpty(cp.Location), nullIfEmpty(cp.ResumeText),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert career profile: %w", err)
	}
	return nil
}

// GetJobTarget returns the job target only if it belongs to userID. Another
// user's target is indistinguishable from a missing one (nil, nil).
func (db *DB) GetJobTarget(ctx context.Context, userID, jobTargetID uuid.UUID) (*types.JobTarget, error) {
	var jt types.JobTarget
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, title, COALESCE(company, ''), COALESCE(location, ''), COALESCE(description, ''), created_at
		 FROM job_targets WHERE id = $1 AND user_id = $2`,
		jobTargetID, userID,
	).Scan(&jt.ID, &jt.UserID, &jt.Title, &jt.Company, &jt.Location, &jt.Description, &jt.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job target: %w", err)
	}
	return &jt, nil
}

// CreateJobTarget inserts a job target and fills in its id and timestamp.
func (db *DB) CreateJobTarget(ctx context.Context, jt *types.JobTarget) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO job_targets (user_id, title, company, location, description)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		jt.UserID, jt.Title, nullIfEmpty(jt.Company), nullIfEmpty(jt.Location), nullIfEmpty(jt.Description),
	).Scan(&jt.ID, &jt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job target: %w", err)
	}
	return nil
}
