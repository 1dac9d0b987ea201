// ABOUTME: Token lifecycle manager: caches one bearer token per scope and serializes refreshes
// ABOUTME: Uses singleflight so concurrent acquirers share a single in-flight provider call

package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// TokenManager owns exactly one logically current token. All mutation is a
// full replace; there is no partial update of token state.
type TokenManager struct {
	source TokenSource
	mirror TokenStore // optional, may be nil
	buffer time.Duration

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	lastErr   error

	group singleflight.Group
}

// NewTokenManager builds a manager around the given source. buffer is the
// "expiring soon" threshold. If mirror is non-nil, a still-valid mirrored
// token is adopted at startup so a restart does not force re-acquisition.
func NewTokenManager(source TokenSource, mirror TokenStore, buffer time.Duration) *TokenManager {
	m := &TokenManager{
		source: source,
		mirror: mirror,
		buffer: buffer,
	}

	if mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if token, expiresAt, err := mirror.Load(ctx); err == nil && token != "" && time.Now().Before(expiresAt) {
			m.token = token
			m.expiresAt = expiresAt
			slog.Info("Adopted mirrored token", "expires_at", expiresAt)
		}
	}

	return m
}

// Current returns the cached token without attempting acquisition. An
// expired token is purged on read and never returned.
func (m *TokenManager) Current() (string, bool) {
	m.mu.RLock()
	token, expiresAt := m.token, m.expiresAt
	m.mu.RUnlock()

	if token == "" {
		return "", false
	}
	if !time.Now().Before(expiresAt) {
		m.Clear()
		return "", false
	}
	return token, true
}

// Acquire returns a valid token, refreshing through the source when the
// cached one is missing, forced, or inside the expiring-soon buffer.
// Callers that arrive while a refresh is in flight share its result instead
// of triggering parallel provider calls. On failure the previous cached
// token is left untouched and the error is recorded and returned.
func (m *TokenManager) Acquire(ctx context.Context, force bool) (string, error) {
	if !force {
		if token, ok := m.fresh(); ok {
			return token, nil
		}
	}

	v, err, _ := m.group.Do("acquire", func() (interface{}, error) {
		// Double-check: an earlier flight may have refreshed while this
		// caller was queued on the group.
		if !force {
			if token, ok := m.fresh(); ok {
				return token, nil
			}
		}

		result, err := m.source.Acquire(ctx)
		if err != nil {
			m.recordError(err)
			return nil, err
		}

		m.Set(result.AccessToken, result.ExpiresAt)
		return result.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// ExpiringSoon reports whether the cached token is absent, expired, or
// within the buffer of its expiry.
func (m *TokenManager) ExpiringSoon() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return true
	}
	return time.Now().Add(m.buffer).After(m.expiresAt)
}

// Set replaces the cached token and expiry wholesale and mirrors it.
func (m *TokenManager) Set(token string, expiresAt time.Time) {
	m.mu.Lock()
	m.token = token
	m.expiresAt = expiresAt
	m.lastErr = nil
	m.mu.Unlock()

	if m.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.mirror.Save(ctx, token, expiresAt); err != nil {
			slog.Warn("Failed to mirror token", "error", err)
		}
	}
}

// Clear purges the cached token unconditionally (logout, or a downstream
// 401 proving the token invalid regardless of local expiry bookkeeping).
func (m *TokenManager) Clear() {
	m.mu.Lock()
	m.token = ""
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	if m.mirror != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.mirror.Clear(ctx); err != nil {
			slog.Warn("Failed to clear mirrored token", "error", err)
		}
	}
}

// LastError returns the most recent acquisition failure, cleared by the
// next successful refresh.
func (m *TokenManager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Status reports diagnostics for the token status endpoint. The token value
// itself is never exposed.
func (m *TokenManager) Status() models.TokenStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := models.TokenStatus{
		HasToken: m.token != "" && time.Now().Before(m.expiresAt),
	}
	if status.HasToken {
		status.ExpiresAt = m.expiresAt.UTC().Format(time.RFC3339)
		status.ExpiringSoon = time.Now().Add(m.buffer).After(m.expiresAt)
	} else {
		status.ExpiringSoon = true
	}
	if m.lastErr != nil {
		status.LastError = m.lastErr.Error()
	}
	return status
}

// fresh returns the cached token only when it is valid and outside the
// expiring-soon buffer.
func (m *TokenManager) fresh() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", false
	}
	if time.Now().Add(m.buffer).After(m.expiresAt) {
		return "", false
	}
	return m.token, true
}

func (m *TokenManager) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	slog.Warn("Token acquisition failed", "error", err)
}
