package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/career-coach/internal/types"
)

// CreateToolResult writes an immutable tool result. The generated id and
// creation time are set on r.
func (db *DB) CreateToolResult(ctx context.Context, r *types.ToolResult) error {
	payload, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal tool result: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO tool_results (user_id, tool_id, job_target_id, result, summary, metric_value,
		                           model_used, prompt_tokens, completion_tokens, latency_ms, tokens_charged)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, created_at`,
		r.UserID, r.ToolID, r.JobTargetID, payload, r.Summary, r.MetricValue,
		r.ModelUsed, r.PromptTokens, r.CompletionTokens, r.LatencyMS, r.TokensCharged,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tool result: %w", err)
	}
	return nil
}

// GetToolResult returns the result only if it belongs to userID, else nil.
func (db *DB) GetToolResult(ctx context.Context, userID, id uuid.UUID) (*types.ToolResult, error) {
	var (
		r       types.ToolResult
		payload []byte
	)
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, tool_id, job_target_id, result, summary, metric_value, model_used,
		        prompt_tokens, completion_tokens, latency_ms, tokens_charged, created_at
		 FROM tool_results WHERE id = $1 AND user_id = $2`,
		id, userID,
	).Scan(&r.ID, &r.UserID, &r.ToolID, &r.JobTargetID, &payload, &r.Summary, &r.MetricValue, &r.ModelUsed,
		&r.PromptTokens, &r.CompletionTokens, &r.LatencyMS, &r.TokensCharged, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tool result: %w", err)
	}
	if err := json.Unmarshal(payload, &r.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool result: %w", err)
	}
	return &r, nil
}
