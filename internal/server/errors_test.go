package server

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestErrValidation(t *testing.T) {
	err := &ErrValidation{Field: "tool_id", Message: "tool_id is required"}
	assert.Equal(t, "validation error: tool_id - tool_id is required", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	noField := &ErrValidation{Message: "invalid request body"}
	assert.Equal(t, "validation error: invalid request body", noField.Error())
}

func TestErrNotFound(t *testing.T) {
	id := uuid.New()
	err := &ErrNotFound{Resource: "result", ID: id}
	assert.Contains(t, err.Error(), id.String())
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name:     "ErrValidation",
			err:      &ErrValidation{Field: "inputs", Message: "inputs must be a JSON object"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "ErrUnauthorized",
			err:      &ErrUnauthorized{},
			expected: http.StatusUnauthorized,
		},
		{
			name:     "ErrRateLimited",
			err:      &ErrRateLimited{RetryAfter: time.Second},
			expected: http.StatusTooManyRequests,
		},
		{
			name:     "ErrNotFound",
			err:      &ErrNotFound{Resource: "result", ID: uuid.New()},
			expected: http.StatusNotFound,
		},
		{
			name:     "wrapped ErrValidation",
			err:      fmt.Errorf("decode: %w", &ErrValidation{Message: "bad"}),
			expected: http.StatusBadRequest,
		},
		{
			name:     "Unknown error",
			err:      assert.AnError,
			expected: http.StatusInternalServerError,
		},
		{
			name:     "Nil error",
			err:      nil,
			expected: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "unknown tool_id \"nope\"", publicMessage(&ErrValidation{Field: "tool_id", Message: "unknown tool_id \"nope\""}))
	assert.Equal(t, "Unauthorized", publicMessage(&ErrUnauthorized{}))
	assert.Equal(t, "Internal server error", publicMessage(fmt.Errorf("pq: connection refused")))
}
