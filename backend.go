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
	"github.com/callgrid/signaling/api"
)

const (
	CallBackendTypeNative   = "native"
	CallBackendTypeWebview  = "webview"
	CallBackendTypeHeadless = "headless"

	CallBackendTypeDefault = CallBackendTypeNative
)

// Environment describes the host process. Backend probes decide based on
// it whether they can operate; the call core never inspects it itself.
type Environment struct {
	props api.StringMap
}

func NewEnvironment(props api.StringMap) *Environment {
	return &Environment{
		props: props,
	}
}

func (e *Environment) Get(key string) (any, bool) {
	v, found := e.props[key]
	return v, found
}

func (e *Environment) GetBool(key string) bool {
	v, found := api.GetStringMapEntry[bool](e.props, key)
	return found && v
}

// CallDriver is the negotiation/media capability behind one call session.
// Implementations own codec negotiation and media transport; the call
// core only feeds signaling payloads through this interface. Drivers are
// only ever invoked from the manager's serial executor.
type CallDriver interface {
	// PrepareIncomingCall primes the driver with the offer carried by a
	// remote invite.
	PrepareIncomingCall(content api.StringMap)

	// ProcessEvent feeds a signaling event into the negotiation logic.
	ProcessEvent(event *api.CallEvent)

	// AnsweredElsewhere tells the driver the call was picked up on
	// another device of the local user.
	AnsweredElsewhere()
}

// CallBackend creates drivers for call sessions. Backends register with
// the CallRegistry and are probed for environment support; the first
// usable backend in the configured order wins.
type CallBackend interface {
	Type() string

	IsSupported(env *Environment) bool

	NewDriver(session *CallSession, credentials *api.TurnCredentials) (CallDriver, error)
}

// TurnCredentialsSource provides the most recently fetched relay
// credentials, if any.
type TurnCredentialsSource interface {
	Credentials() *api.TurnCredentials
}
