// ABOUTME: Background token refresher: periodic expiry checks plus activity-driven early checks
// ABOUTME: Keeps a genuinely idle deployment from refreshing; activity signals arrive from the HTTP layer

package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// minActivityGap throttles opportunistic checks so request bursts do not
// hammer the identity provider.
const minActivityGap = 5 * time.Second

// TokenRefresher drives the periodic refresh loop for a TokenManager.
// Every tick (and on activity signals) it refreshes iff the token is
// expiring soon; failures are non-fatal and retried on the next tick.
type TokenRefresher struct {
	manager  *TokenManager
	interval time.Duration
	activity chan struct{}

	mu        sync.Mutex
	lastCheck time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTokenRefresher(manager *TokenManager, interval time.Duration) *TokenRefresher {
	return &TokenRefresher{
		manager:  manager,
		interval: interval,
		activity: make(chan struct{}, 1),
	}
}

// Start launches the refresh loop. Call Stop to shut it down.
func (r *TokenRefresher) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run(ctx)
	slog.Info("Token refresher started", "interval", r.interval)
}

// Stop shuts the loop down and blocks until it has exited.
func (r *TokenRefresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	slog.Info("Token refresher stopped")
}

// Notify records user/request activity. Non-blocking: a signal is dropped
// when one is already pending.
func (r *TokenRefresher) Notify() {
	select {
	case r.activity <- struct{}{}:
	default:
	}
}

func (r *TokenRefresher) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.check(ctx)
		case <-r.activity:
			if r.recentlyChecked() {
				continue
			}
			r.check(ctx)
		}
	}
}

func (r *TokenRefresher) check(ctx context.Context) {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()

	if !r.manager.ExpiringSoon() {
		return
	}

	if _, err := r.manager.Acquire(ctx, false); err != nil {
		// Non-fatal: the manager keeps serving the last known-good token
		// until it actually expires. The next tick retries.
		slog.Warn("Periodic token refresh failed", "error", err)
	}
}

func (r *TokenRefresher) recentlyChecked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Since(r.lastCheck) < minActivityGap
}
