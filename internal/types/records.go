package types

import (
	"time"

	"github.com/google/uuid"
)

// Profile is a caller's account with token balances.
type Profile struct {
	ID             uuid.UUID  `json:"id"`
	FullName       string     `json:"full_name,omitempty"`
	TokenBalance   int        `json:"token_balance"`
	BonusTokens    int        `json:"bonus_tokens"`
	BonusExpiresAt *time.Time `json:"bonus_expires_at,omitempty"`
	ReferredBy     *uuid.UUID `json:"referred_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ActiveBonus returns the bonus tokens still usable at now.
func (p *Profile) ActiveBonus(now time.Time) int {
	if p == nil || p.BonusTokens <= 0 || p.BonusExpiresAt == nil || !p.BonusExpiresAt.After(now) {
		return 0
	}
	return p.BonusTokens
}

// Available returns purchased plus unexpired bonus tokens.
func (p *Profile) Available(now time.Time) int {
	if p == nil {
		return 0
	}
	return p.TokenBalance + p.ActiveBonus(now)
}

// CareerProfile is the caller's self-described career background.
type CareerProfile struct {
	UserID          uuid.UUID `json:"user_id"`
	CurrentTitle    string    `json:"current_title,omitempty"`
	Industry        string    `json:"industry,omitempty"`
	YearsExperience *int      `json:"years_experience,omitempty"`
	Skills          []string  `json:"skills,omitempty"`
	Goals           string    `json:"goals,omitempty"`
	Location        string    `json:"location,omitempty"`
	ResumeText      string    `json:"resume_text,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// JobTarget is a job the caller is aiming for.
type JobTarget struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Title       string    `json:"title"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExecutionContext is the read-only data one tool run is personalized with.
// CareerProfile and JobTarget are nil when the caller has none.
type ExecutionContext struct {
	UserID        uuid.UUID
	Profile       *Profile
	CareerProfile *CareerProfile
	JobTarget     *JobTarget
}

// ToolResult is a persisted tool output.
type ToolResult struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	ToolID           string         `json:"tool_id"`
	JobTargetID      *uuid.UUID     `json:"job_target_id,omitempty"`
	Result           map[string]any `json:"result"`
	Summary          string         `json:"summary"`
	MetricValue      *float64       `json:"metric_value,omitempty"`
	ModelUsed        string         `json:"model_used"`
	PromptTokens     *int           `json:"prompt_tokens,omitempty"`
	CompletionTokens *int           `json:"completion_tokens,omitempty"`
	LatencyMS        int64          `json:"latency_ms"`
	TokensCharged    int            `json:"tokens_charged"`
	CreatedAt        time.Time      `json:"created_at"`
}

// BalanceResponse is the body of GET /tokens/balance.
type BalanceResponse struct {
	TokenBalance   int        `json:"token_balance"`
	BonusTokens    int        `json:"bonus_tokens"`
	BonusExpiresAt *time.Time `json:"bonus_expires_at,omitempty"`
	Available      int        `json:"available"`
}
