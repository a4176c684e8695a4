package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/career-coach/internal/server/middleware"
)

// IdentityClient verifies bearer credentials against a remote identity
// provider. The provider answers GET <url> with {"id": "<uuid>"} for a valid
// credential and a non-2xx status otherwise.
type IdentityClient struct {
	url        string
	httpClient *http.Client
}

// NewIdentityClient creates a verifier for the given user-info endpoint.
func NewIdentityClient(url string, httpClient *http.Client) *IdentityClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &IdentityClient{url: url, httpClient: httpClient}
}

type identityUser struct {
	ID uuid.UUID `json:"id"`
}

func (u identityUser) GetUserID() uuid.UUID {
	return u.ID
}

// ValidateToken asks the identity provider who owns tokenString.
func (c *IdentityClient) ValidateToken(ctx context.Context, tokenString string) (middleware.UserIDGetter, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokenString)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var user identityUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return nil, fmt.Errorf("failed to decode identity response: %w", err)
	}
	if user.ID == uuid.Nil {
		return nil, fmt.Errorf("identity response carries no user id")
	}
	return user, nil
}
