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
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

var (
	// ErrCallUnsupported is returned when no registered backend can
	// operate in the current environment. This is a recoverable
	// condition for callers, never fatal.
	ErrCallUnsupported = api.NewError(api.ErrorCodeNotSupported, "calls are not supported in this environment")
)

// CallRegistry is the single source of truth for in-progress call
// sessions, keyed by call id. Sessions are created on demand with the
// first usable call backend and removed when hung up or superseded.
// A call id is never reused after removal.
type CallRegistry struct {
	log *zap.Logger
	env *Environment

	// Probe order for backends that don't match the preferred type.
	backends []CallBackend

	turn TurnCredentialsSource

	mu            sync.Mutex
	preferredType string
	calls         map[string]*CallSession
}

func NewCallRegistry(log *zap.Logger, env *Environment, backends []CallBackend, preferredType string) *CallRegistry {
	if preferredType == "" {
		preferredType = CallBackendTypeDefault
	}
	return &CallRegistry{
		log:      log,
		env:      env,
		backends: backends,

		preferredType: preferredType,
		calls:         make(map[string]*CallSession),
	}
}

// SetTurnCredentialsSource configures where newly created drivers get
// their relay credentials from.
func (r *CallRegistry) SetTurnCredentialsSource(turn TurnCredentialsSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turn = turn
}

// IsSupported reports whether at least one backend can operate in the
// current environment.
func (r *CallRegistry) IsSupported() bool {
	for _, backend := range r.backends {
		if backend.IsSupported(r.env) {
			return true
		}
	}
	return false
}

// SupportedTypes returns the types of all usable backends in probe order.
func (r *CallRegistry) SupportedTypes() []string {
	var types []string
	for _, backend := range r.backends {
		if backend.IsSupported(r.env) {
			types = append(types, backend.Type())
		}
	}
	return types
}

// SetPreferredType changes the preferred backend type. The change is
// ignored if no usable backend of that type is registered.
func (r *CallRegistry) SetPreferredType(backendType string) {
	for _, backend := range r.backends {
		if backend.Type() == backendType && backend.IsSupported(r.env) {
			r.mu.Lock()
			r.preferredType = backendType
			r.mu.Unlock()
			return
		}
	}

	r.log.Debug("Ignoring unusable preferred backend type",
		zap.String("type", backendType),
	)
}

// Get looks up a session without side effects.
func (r *CallRegistry) Get(callId string) (*CallSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call, found := r.calls[callId]
	return call, found
}

// GetOrCreate returns the session for callId, creating it if necessary.
// An empty callId creates a session with a fresh id. Concurrent callers
// never observe two sessions for the same id.
func (r *CallRegistry) GetOrCreate(callId string) (*CallSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if callId != "" {
		if call, found := r.calls[callId]; found {
			return call, false, nil
		}
	} else {
		callId = uuid.NewString()
	}

	var credentials *api.TurnCredentials
	if r.turn != nil {
		credentials = r.turn.Credentials()
	}

	call := NewCallSession(r.log, callId)
	for _, backend := range r.candidateBackendsLocked() {
		driver, err := backend.NewDriver(call, credentials)
		if err != nil {
			r.log.Warn("Could not create call driver",
				zap.String("backend", backend.Type()),
				zap.String("callid", callId),
				zap.Error(err),
			)
			continue
		}

		call.setDriver(driver)
		r.calls[callId] = call
		statsCallsCurrent.Inc()
		return call, true, nil
	}

	return nil, false, ErrCallUnsupported
}

// candidateBackendsLocked returns usable backends, preferred type first,
// then the remaining backends in registration order.
// +checklocks:r.mu
func (r *CallRegistry) candidateBackendsLocked() []CallBackend {
	var result []CallBackend
	for _, backend := range r.backends {
		if backend.Type() == r.preferredType && backend.IsSupported(r.env) {
			result = append(result, backend)
		}
	}
	for _, backend := range r.backends {
		if backend.Type() != r.preferredType && backend.IsSupported(r.env) {
			result = append(result, backend)
		}
	}
	return result
}

// Remove deletes the session for callId. Removing an unknown id is a
// no-op.
func (r *CallRegistry) Remove(callId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.calls[callId]; found {
		delete(r.calls, callId)
		statsCallsCurrent.Dec()
	}
}

func (r *CallRegistry) HasCalls() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls) > 0
}

func (r *CallRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// All returns a snapshot of the current sessions. The slice is a copy,
// callers may iterate it without holding any registry lock.
func (r *CallRegistry) All() []*CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := make([]*CallSession, 0, len(r.calls))
	for _, call := range r.calls {
		result = append(result, call)
	}
	return result
}

// GetBySignalingRoom returns the session whose signaling room is roomId.
func (r *CallRegistry) GetBySignalingRoom(roomId string) (*CallSession, bool) {
	for _, call := range r.All() {
		if call.SignalingRoomId() == roomId {
			return call, true
		}
	}
	return nil, false
}
