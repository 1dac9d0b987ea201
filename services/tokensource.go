// ABOUTME: Token source abstraction over the identity provider
// ABOUTME: Implements the Azure AD client-credentials grant with layered expiry resolution

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenResult is a raw token produced by the identity provider together with
// its resolved absolute expiry.
type TokenResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenSource produces bearer tokens on demand. Implementations are treated
// as opaque: the manager never inspects failures beyond logging them.
type TokenSource interface {
	Acquire(ctx context.Context) (*TokenResult, error)
}

// AADTokenSource acquires tokens from Azure AD using the OAuth2
// client-credentials grant.
type AADTokenSource struct {
	tokenURL        string
	clientID        string
	clientSecret    string
	scope           string
	assumedLifetime time.Duration
	client          *http.Client
}

// NewAADTokenSource builds a source for the given tenant. assumedLifetime is
// the fallback token lifetime used when the provider response carries no
// expiry and the token itself has no exp claim.
func NewAADTokenSource(tenantID, clientID, clientSecret, scope string, assumedLifetime time.Duration) *AADTokenSource {
	return &AADTokenSource{
		tokenURL:        fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		clientID:        clientID,
		clientSecret:    clientSecret,
		scope:           scope,
		assumedLifetime: assumedLifetime,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (s *AADTokenSource) SetHTTPClient(client *http.Client) {
	s.client = client
}

// SetTokenURL overrides the token endpoint (useful for testing)
func (s *AADTokenSource) SetTokenURL(tokenURL string) {
	s.tokenURL = tokenURL
}

func (s *AADTokenSource) Acquire(ctx context.Context) (*TokenResult, error) {
	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", s.clientID)
	data.Set("client_secret", s.clientSecret)
	data.Set("scope", s.scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("identity provider returned an empty token")
	}

	return &TokenResult{
		AccessToken: tokenResp.AccessToken,
		ExpiresAt:   s.resolveExpiry(tokenResp.AccessToken, tokenResp.ExpiresIn),
	}, nil
}

// resolveExpiry picks the token expiry: provider-reported expires_in first,
// then the token's own JWT exp claim, then the assumed lifetime.
func (s *AADTokenSource) resolveExpiry(raw string, expiresIn int) time.Time {
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	if exp, ok := tokenExpiryClaim(raw); ok {
		return exp
	}
	return time.Now().Add(s.assumedLifetime)
}

// tokenExpiryClaim extracts the exp claim from a JWT without verifying the
// signature. The token is only used as a bearer credential downstream; the
// resource server performs the cryptographic validation.
func tokenExpiryClaim(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
