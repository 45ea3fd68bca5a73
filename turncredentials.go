/**
 * Call signaling orchestrator for federated messaging networks.
 * Copyright (C) 2026 CallGrid
 *
 * @license GNU AGPL version 3 or any later version
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */
package signaling

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

const (
	// DefaultTurnRetryDelay is how long to wait before retrying a
	// failed credentials fetch.
	DefaultTurnRetryDelay = time.Minute
)

// TurnCredentialsFetchFunc fetches fresh relay credentials from the
// credentials endpoint.
type TurnCredentialsFetchFunc func(ctx context.Context) (*api.TurnCredentials, error)

// StaticTurnCredentials returns a fetcher that always reports the given
// servers. The TTL still drives the refresh cycle.
func StaticTurnCredentials(uris []string, ttl int64) TurnCredentialsFetchFunc {
	return func(ctx context.Context) (*api.TurnCredentials, error) {
		return &api.TurnCredentials{
			URIs: uris,
			TTL:  ttl,
		}, nil
	}
}

// TurnCredentialsManager keeps the relay credentials fresh. A successful
// fetch schedules the next refresh at 90% of the reported TTL; network
// and rate-limit failures are retried after a fixed delay, other
// protocol failures are not retried. At most one refresh timer is
// outstanding at any time.
type TurnCredentialsManager struct {
	log *zap.Logger

	fetch      TurnCredentialsFetchFunc
	retryDelay time.Duration

	afterFunc func(time.Duration, func()) *time.Timer

	mu          sync.Mutex
	suspended   bool
	timer       *time.Timer
	credentials *api.TurnCredentials
}

func NewTurnCredentialsManager(log *zap.Logger, fetch TurnCredentialsFetchFunc, retryDelay time.Duration) *TurnCredentialsManager {
	if retryDelay <= 0 {
		retryDelay = DefaultTurnRetryDelay
	}
	return &TurnCredentialsManager{
		log: log,

		fetch:      fetch,
		retryDelay: retryDelay,

		afterFunc: time.AfterFunc,
	}
}

// Credentials returns the most recently fetched credentials, or nil if
// none were fetched yet.
func (t *TurnCredentialsManager) Credentials() *api.TurnCredentials {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.credentials
}

// Refresh fetches new credentials unless refreshing is suspended. The
// fetch happens asynchronously, Refresh never blocks on the network.
func (t *TurnCredentialsManager) Refresh() {
	t.mu.Lock()
	suspended := t.suspended
	t.mu.Unlock()
	if suspended {
		return
	}

	go t.doRefresh()
}

// Pause suspends refreshing. Outstanding timers keep running but their
// refresh becomes a no-op.
func (t *TurnCredentialsManager) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
}

// Resume re-enables refreshing, cancels any pending timer and fetches
// immediately.
func (t *TurnCredentialsManager) Resume() {
	t.mu.Lock()
	t.suspended = false
	t.stopTimerLocked()
	t.mu.Unlock()

	t.Refresh()
}

// Stop suspends refreshing and cancels any pending timer. No refresh
// happens until Resume is called.
func (t *TurnCredentialsManager) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspended = true
	t.stopTimerLocked()
}

// +checklocks:t.mu
func (t *TurnCredentialsManager) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TurnCredentialsManager) doRefresh() {
	credentials, err := t.fetch(context.Background())
	if err != nil {
		switch kind := api.ClassifyError(err); kind {
		case api.KindNetwork, api.KindRateLimited:
			statsTurnRefreshTotal.WithLabelValues(kind.String()).Inc()
			t.log.Warn("Fetching TURN credentials failed, will retry",
				zap.Stringer("kind", kind),
				zap.Duration("delay", t.retryDelay),
				zap.Error(err),
			)
			t.scheduleRefresh(t.retryDelay)
		default:
			// Deliberate non-recovery, these faults are not transient.
			statsTurnRefreshTotal.WithLabelValues(kind.String()).Inc()
			t.log.Error("Fetching TURN credentials failed",
				zap.Stringer("kind", kind),
				zap.Error(err),
			)
		}
		return
	}

	statsTurnRefreshTotal.WithLabelValues("success").Inc()
	if credentials == nil {
		return
	}

	if len(credentials.URIs) > 0 {
		t.mu.Lock()
		t.credentials = credentials
		t.mu.Unlock()
	}

	if credentials.TTL > 0 {
		// Refresh at 90% of the TTL so the credentials never expire
		// while in use.
		delay := time.Duration(credentials.TTL) * time.Second / 10 * 9
		t.scheduleRefresh(delay)
	}
}

func (t *TurnCredentialsManager) scheduleRefresh(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopTimerLocked()
	t.timer = t.afterFunc(delay, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()

		t.Refresh()
	})
}
