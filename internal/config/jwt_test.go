package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWT_Valid(t *testing.T) {
	cfg := Config{JWTSecret: "test-secret-key-for-jwt-signing", JWTExpirationHours: 24}

	jwtCfg, err := cfg.JWT()
	require.NoError(t, err)
	assert.Equal(t, "test-secret-key-for-jwt-signing", jwtCfg.Secret)
	assert.Equal(t, 24, jwtCfg.ExpirationHours)
}

func TestJWT_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		hours  int
		want   string
	}{
		{"empty secret", "", 24, "cannot be empty"},
		{"short secret", "short", 24, "at least 16 bytes"},
		{"zero expiration", "test-secret-key-for-jwt-signing", 0, "at least 1 hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Config{JWTSecret: tt.secret, JWTExpirationHours: tt.hours}.JWT()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
