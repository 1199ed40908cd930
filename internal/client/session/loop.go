package session

import (
	"context"
	"time"
)

// startLoopLocked launches the background refresh loop unless one is already
// running for the current authenticated period. Caller holds m.mu.
func (m *Manager) startLoopLocked() {
	if m.loopCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.loopCancel = cancel
	go m.refreshLoop(ctx, m.generation)
}

// refreshLoop proactively renews the credential before expiry.
//
// Two-tier schedule: while more than refreshHeadroom of validity remains, it
// sleeps long (capped at idleSleep) and makes no network calls at all; inside
// the headroom it renews, spacing attempts by minRefreshGap and retrying
// failures after failureRetryDelay. Every sleep races the logout cancellation
// signal, so the loop never outlives its session and never busy-waits.
func (m *Manager) refreshLoop(ctx context.Context, gen int) {
	defer func() {
		m.mu.Lock()
		if m.generation == gen && m.loopCancel != nil {
			m.loopCancel()
			m.loopCancel = nil
		}
		m.mu.Unlock()
	}()

	for {
		m.mu.Lock()
		if m.generation != gen || !m.sess.Authenticated() {
			m.mu.Unlock()
			return
		}
		expiresAt := m.sess.ExpiresAt
		lastRefresh := m.lastRefresh
		m.mu.Unlock()

		now := m.clk.Now()
		untilExpiry := expiresAt.Sub(now)

		if untilExpiry > refreshHeadroom {
			d := untilExpiry - refreshHeadroom
			if d > idleSleep {
				d = idleSleep
			}
			if !m.sleep(ctx, d) {
				return
			}
			continue
		}

		if !lastRefresh.IsZero() {
			if gap := now.Sub(lastRefresh); gap < minRefreshGap {
				if !m.sleep(ctx, minRefreshGap-gap) {
					return
				}
				continue
			}
		}

		if err := m.refresh(ctx, true); err != nil {
			m.log.Warn(ctx, "credential refresh failed", "error", err)
			m.mu.Lock()
			active := m.generation == gen && m.sess.Authenticated()
			m.mu.Unlock()
			if !active {
				return
			}
			if !m.sleep(ctx, failureRetryDelay) {
				return
			}
			continue
		}

		m.mu.Lock()
		untilExpiry = m.sess.ExpiresAt.Sub(m.clk.Now())
		m.mu.Unlock()

		d := time.Duration(successSleepFactor * float64(untilExpiry))
		if d < minSuccessSleep {
			d = minSuccessSleep
		}
		if !m.sleep(ctx, d) {
			return
		}
	}
}

// sleep waits for d or until ctx is cancelled. Returns false on cancellation.
func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-m.clk.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
