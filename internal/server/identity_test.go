package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityServer(t *testing.T, tokens map[string]uuid.UUID) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("Authorization")
		if len(token) > len("Bearer ") {
			token = token[len("Bearer "):]
		}
		id, ok := tokens[token]
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id.String(), "email": "user@example.com"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIdentityClient_ValidToken(t *testing.T) {
	userID := uuid.New()
	srv := newIdentityServer(t, map[string]uuid.UUID{"good": userID})

	got, err := NewIdentityClient(srv.URL, nil).ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, userID, got.GetUserID())
}

func TestIdentityClient_RejectedToken(t *testing.T) {
	srv := newIdentityServer(t, map[string]uuid.UUID{})

	_, err := NewIdentityClient(srv.URL, nil).ValidateToken(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestIdentityClient_EmptyToken(t *testing.T) {
	_, err := NewIdentityClient("http://127.0.0.1:0", nil).ValidateToken(context.Background(), "")
	assert.Error(t, err)
}

func TestIdentityClient_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"email":"user@example.com"}`))
	}))
	defer srv.Close()

	_, err := NewIdentityClient(srv.URL, nil).ValidateToken(context.Background(), "token")
	assert.Error(t, err)
}

func TestIdentityClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewIdentityClient(srv.URL, nil).ValidateToken(context.Background(), "token")
	assert.Error(t, err)
}
