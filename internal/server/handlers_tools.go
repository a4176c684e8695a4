package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/logx"
	"github.com/jonathan/career-coach/internal/pipeline"
	"github.com/jonathan/career-coach/internal/sanitize"
	"github.com/jonathan/career-coach/internal/server/middleware"
	"github.com/jonathan/career-coach/internal/types"
)

// maxRequestBytes bounds the invocation body. It sits above the per-field
// input cap so oversized fields are truncated rather than rejected.
const maxRequestBytes = 2 << 20

// handleRunTool validates and sanitizes an invocation, then streams the run.
func (s *Server) handleRunTool(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.writeError(w, &ErrUnauthorized{})
		return
	}

	req, err := s.decodeInvocation(w, r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	inputs, err := req.InputMap()
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "inputs", Message: "inputs must be a JSON object"})
		return
	}
	inputs, report := sanitize.Inputs(inputs, s.opts.MaxInputChars)
	if report.Changed() {
		logx.Warn().
			Str("user_id", userID.String()).
			Str("tool_id", req.ToolID).
			Int("filtered", report.Filtered).
			Strs("truncated", report.Truncated).
			Msg("tool inputs sanitized")
	}

	runReq := pipeline.Request{
		UserID: userID,
		ToolID: req.ToolID,
		Inputs: inputs,
	}
	if req.JobTargetID != "" {
		id, err := uuid.Parse(req.JobTargetID)
		if err != nil {
			s.writeError(w, &ErrValidation{Field: "job_target_id", Message: "job_target_id must be a valid UUID"})
			return
		}
		runReq.JobTargetID = &id
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// The request context ends when the client disconnects, which cancels the run.
	if err := s.opts.Runner.Run(r.Context(), runReq, sse); err != nil {
		logx.Debug().Err(err).Str("user_id", userID.String()).Str("tool_id", req.ToolID).Msg("tool run ended with error")
	}
}

func (s *Server) decodeInvocation(w http.ResponseWriter, r *http.Request) (*types.ToolInvocationRequest, error) {
	var req types.ToolInvocationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &ErrValidation{Message: "request body too large"}
		}
		return nil, &ErrValidation{Message: "invalid request body"}
	}
	if err := req.Validate(s.opts.Known); err != nil {
		return nil, &ErrValidation{Message: types.ValidationMessage(err)}
	}
	return &req, nil
}

// handleGetResult returns one of the caller's stored results.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.writeError(w, &ErrUnauthorized{})
		return
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.writeError(w, &ErrValidation{Field: "id", Message: "result id must be a valid UUID"})
		return
	}

	result, err := s.opts.Store.GetToolResult(r.Context(), userID, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if result == nil {
		s.writeError(w, &ErrNotFound{Resource: "result", ID: id})
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

// handleBalance returns the caller's purchased and bonus tokens.
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.writeError(w, &ErrUnauthorized{})
		return
	}

	profile, err := s.opts.Store.GetProfile(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if profile == nil {
		s.writeError(w, &ErrNotFound{Resource: "profile", ID: userID})
		return
	}

	now := s.now()
	s.jsonResponse(w, http.StatusOK, types.BalanceResponse{
		TokenBalance:   profile.TokenBalance,
		BonusTokens:    profile.ActiveBonus(now),
		BonusExpiresAt: profile.BonusExpiresAt,
		Available:      profile.Available(now),
	})
}
