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
	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

// HeadlessCallBackend drives no media at all, it only tracks signaling
// progress. Server-side deployments use it to follow calls they are not
// a media party of.
type HeadlessCallBackend struct {
	log *zap.Logger
}

func NewHeadlessCallBackend(log *zap.Logger) *HeadlessCallBackend {
	return &HeadlessCallBackend{
		log: log,
	}
}

func (b *HeadlessCallBackend) Type() string {
	return CallBackendTypeHeadless
}

func (b *HeadlessCallBackend) IsSupported(env *Environment) bool {
	// No media requirements.
	return true
}

func (b *HeadlessCallBackend) NewDriver(session *CallSession, credentials *api.TurnCredentials) (CallDriver, error) {
	return &headlessCallDriver{
		log: b.log.With(
			zap.String("callid", session.Id()),
		),
		session: session,
	}, nil
}

type headlessCallDriver struct {
	log     *zap.Logger
	session *CallSession
}

func (d *headlessCallDriver) PrepareIncomingCall(content api.StringMap) {
	d.session.SetState(CallStateRinging)
}

func (d *headlessCallDriver) ProcessEvent(event *api.CallEvent) {
	switch event.Type {
	case api.CallEventInvite:
		d.session.SetState(CallStateInviteSent)
	case api.CallEventCandidates:
		// Ignored, no media connection to feed.
	case api.CallEventAnswer:
		d.session.SetState(CallStateConnected)
	case api.CallEventHangup:
		d.session.SetState(CallStateEnded)
	}
}

func (d *headlessCallDriver) AnsweredElsewhere() {
	d.log.Debug("Call was answered elsewhere")
}
