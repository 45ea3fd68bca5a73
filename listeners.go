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
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// CallListener receives call lifecycle notifications. Callbacks are
// invoked from the manager's executor; implementations must not block.
type CallListener interface {
	// OnIncomingCall is invoked when an incoming call is ready to be
	// presented.
	OnIncomingCall(call *CallSession)

	// OnCallHangup is invoked when a call was hung up, whether or not
	// the call had been delivered to any listener before.
	OnCallHangup(call *CallSession)

	// OnConferenceStarted is invoked when the conference user joined a
	// room, i.e. a conference call is established there.
	OnConferenceStarted(roomId string)

	// OnConferenceFinished is invoked when the conference user left a
	// room.
	OnConferenceFinished(roomId string)
}

// callListeners is an identity-keyed set of listeners. Dispatch works on
// a snapshot and isolates each listener's faults, so one misbehaving
// listener never prevents delivery to the others. The set has its own
// lock so dispatching into application code never holds the registry
// lock.
type callListeners struct {
	log *zap.Logger

	mu        sync.Mutex
	listeners map[CallListener]bool
}

func (l *callListeners) Add(listener CallListener) {
	if listener == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listeners == nil {
		l.listeners = make(map[CallListener]bool)
	}
	l.listeners[listener] = true
}

func (l *callListeners) Remove(listener CallListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.listeners, listener)
}

func (l *callListeners) snapshot() []CallListener {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]CallListener, 0, len(l.listeners))
	for listener := range l.listeners {
		result = append(result, listener)
	}
	return result
}

func (l *callListeners) dispatch(name string, f func(CallListener)) {
	for _, listener := range l.snapshot() {
		l.dispatchSingle(name, listener, f)
	}
}

func (l *callListeners) dispatchSingle(name string, listener CallListener, f func(CallListener)) {
	defer func() {
		if err := recover(); err != nil {
			l.log.Error("Listener callback failed",
				zap.String("callback", name),
				zap.Any("error", err),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	f(listener)
}
