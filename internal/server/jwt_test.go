package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/career-coach/internal/config"
	"github.com/jonathan/career-coach/internal/server/middleware"
)

const testSecret = "career-coach-test-secret-0123456789"

var verifierNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v := NewJWTVerifier(&config.JWTConfig{Secret: testSecret, ExpirationHours: 24})
	v.now = func() time.Time { return verifierNow }
	return v
}

// signToken mints a token the way the identity provider would.
func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func claimsFor(userID uuid.UUID, issued, expires time.Time) *Claims {
	return &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

func TestJWTVerifier_Verify(t *testing.T) {
	userID := uuid.New()
	hourAgo := verifierNow.Add(-time.Hour)
	inAnHour := verifierNow.Add(time.Hour)

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		wantErr string
	}{
		{
			name: "user_id claim",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(userID, hourAgo, inAnHour))
			},
		},
		{
			name: "subject only",
			token: func(t *testing.T) string {
				c := claimsFor(uuid.Nil, hourAgo, inAnHour)
				c.Subject = userID.String()
				return signToken(t, jwt.SigningMethodHS256, testSecret, c)
			},
		},
		{
			name: "expired within leeway",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(userID, hourAgo, verifierNow.Add(-10*time.Second)))
			},
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(userID, hourAgo, verifierNow.Add(-time.Minute)))
			},
			wantErr: "token expired",
		},
		{
			name: "no exp",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, testSecret, &Claims{UserID: userID})
			},
			wantErr: "missing required claim",
		},
		{
			name: "issued too long ago",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(userID, verifierNow.Add(-48*time.Hour), inAnHour))
			},
			wantErr: "issued more than 24h0m0s ago",
		},
		{
			name: "other secret",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, "someone-elses-secret-0123456789", claimsFor(userID, hourAgo, inAnHour))
			},
			wantErr: "invalid token signature",
		},
		{
			name: "HS512",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS512, testSecret, claimsFor(userID, hourAgo, inAnHour))
			},
			wantErr: "invalid token signature",
		},
		{
			name: "no user",
			token: func(t *testing.T) string {
				return signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(uuid.Nil, hourAgo, inAnHour))
			},
			wantErr: "no user id",
		},
		{
			name:    "garbage",
			token:   func(*testing.T) string { return "not.a.jwt" },
			wantErr: "malformed token",
		},
		{
			name:    "empty",
			token:   func(*testing.T) string { return "" },
			wantErr: "empty bearer token",
		},
	}

	v := newTestVerifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := v.Verify(tt.token(t))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.GetUserID())
		})
	}
}

func TestJWTVerifier_RejectsUnsignedTokens(t *testing.T) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, claimsFor(uuid.New(), verifierNow, verifierNow.Add(time.Hour))).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestVerifier(t).Verify(s)
	assert.Error(t, err)
}

func TestClaims_GetUserID(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, id, (&Claims{UserID: id, RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}}).GetUserID())
	assert.Equal(t, id, (&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: id.String()}}).GetUserID())
	assert.Equal(t, uuid.Nil, (&Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "auth0|12345"}}).GetUserID())
}

func TestJWTVerifier_GuardsRoutes(t *testing.T) {
	v := newTestVerifier(t)
	userID := uuid.New()

	var seen uuid.UUID
	h := middleware.AuthMiddleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = middleware.GetUserID(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/tokens/balance", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	good := signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(userID, verifierNow, verifierNow.Add(time.Hour)))
	assert.Equal(t, http.StatusNoContent, call(good))
	assert.Equal(t, userID, seen)

	expired := signToken(t, jwt.SigningMethodHS256, testSecret, claimsFor(userID, verifierNow.Add(-2*time.Hour), verifierNow.Add(-time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, call(expired))

	got, err := v.ValidateToken(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, userID, got.GetUserID())
}
