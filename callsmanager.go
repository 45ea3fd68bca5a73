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
	"time"

	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

const (
	// Call events are processed strictly in order but one at a time, a
	// modest queue absorbs bursts from the event stream.
	callExecutorQueueSize = 64
)

// CallsManager routes signaling events from the federated event stream
// into call sessions and notifies listeners about call lifecycle
// changes. All session and registry mutation is serialized on one
// executor goroutine; queries from other goroutines only touch the
// registry's own lock.
type CallsManager struct {
	log *zap.Logger

	localUserId string

	registry *CallRegistry
	codec    *ConferenceIdCodec
	rooms    RoomDirectory
	turn     *TurnCredentialsManager

	executor  *SerialExecutor
	listeners callListeners

	staleInviteThreshold time.Duration

	// Only accessed from the executor.
	pendingIncoming []string
}

func NewCallsManager(log *zap.Logger, config *CallsConfig, localUserId string, rooms RoomDirectory, registry *CallRegistry, codec *ConferenceIdCodec, turn *TurnCredentialsManager) *CallsManager {
	if config == nil {
		config = DefaultCallsConfig()
	}
	if turn != nil {
		registry.SetTurnCredentialsSource(turn)
	}

	return &CallsManager{
		log: log,

		localUserId: localUserId,

		registry: registry,
		codec:    codec,
		rooms:    rooms,
		turn:     turn,

		executor: NewSerialExecutor(log, callExecutorQueueSize),
		listeners: callListeners{
			log: log,
		},

		staleInviteThreshold: config.StaleInviteThreshold,
	}
}

// Close stops the executor and the credentials refresh. Events handled
// after Close are dropped.
func (m *CallsManager) Close() {
	if m.turn != nil {
		m.turn.Stop()
	}
	m.executor.Close()
	m.executor.waitForStop()
}

func (m *CallsManager) Registry() *CallRegistry {
	return m.registry
}

// IsSupported reports whether calling works at all in this environment.
func (m *CallsManager) IsSupported() bool {
	return m.registry.IsSupported()
}

func (m *CallsManager) HasActiveCalls() bool {
	return m.registry.HasCalls()
}

func (m *CallsManager) GetCallWithCallId(callId string) (*CallSession, bool) {
	return m.registry.Get(callId)
}

func (m *CallsManager) GetCallWithRoomId(roomId string) (*CallSession, bool) {
	return m.registry.GetBySignalingRoom(roomId)
}

func (m *CallsManager) AddListener(listener CallListener) {
	m.listeners.Add(listener)
}

func (m *CallsManager) RemoveListener(listener CallListener) {
	m.listeners.Remove(listener)
}

func (m *CallsManager) PauseTurnServerRefresh() {
	if m.turn != nil {
		m.turn.Pause()
	}
}

func (m *CallsManager) ResumeTurnServerRefresh() {
	if m.turn != nil {
		m.turn.Resume()
	}
}

func (m *CallsManager) StopTurnServerRefresh() {
	if m.turn != nil {
		m.turn.Stop()
	}
}

// HandleCallEvent routes one signaling event. Non-call events and events
// received while calling is unsupported are ignored. Processing happens
// asynchronously on the executor, so events for the same call are never
// processed concurrently and each handler observes the effects of all
// prior events in receipt order.
func (m *CallsManager) HandleCallEvent(event *api.CallEvent) {
	if event == nil || !event.IsCallEvent() || !m.IsSupported() {
		return
	}

	m.executor.Execute(func() {
		m.processCallEvent(event)
	})
}

func (m *CallsManager) processCallEvent(event *api.CallEvent) {
	statsCallEventsTotal.WithLabelValues(string(event.Type)).Inc()

	callId, found := event.CallId()
	if !found || event.RoomId == "" {
		// Anything malformed from the event stream is recovered
		// locally, it never escapes as an error.
		statsMalformedCallEventsTotal.Inc()
		m.log.Debug("Dropping malformed call event",
			zap.Stringer("event", event),
		)
		return
	}

	isMyEvent := event.Sender == m.localUserId

	switch event.Type {
	case api.CallEventInvite:
		m.processInvite(event, callId, isMyEvent)
	case api.CallEventCandidates:
		if isMyEvent {
			return
		}
		if call, found := m.registry.Get(callId); found {
			call.SetRooms(event.RoomId, event.RoomId)
			call.ProcessEvent(event)
		}
	case api.CallEventAnswer:
		m.processAnswer(event, callId)
	case api.CallEventHangup:
		m.processHangup(event, callId)
	default:
		m.log.Debug("Ignoring unsupported call event",
			zap.String("type", string(event.Type)),
		)
	}
}

func (m *CallsManager) processInvite(event *api.CallEvent, callId string, isMyEvent bool) {
	if age := event.Age(time.Now()); age >= m.staleInviteThreshold {
		statsStaleInvitesTotal.Inc()
		m.log.Debug("Ignoring stale invite",
			zap.String("callid", callId),
			zap.Duration("age", age),
		)
		return
	}

	var call *CallSession
	if isMyEvent {
		// Echo of our own outgoing invite, only update an existing
		// session.
		call, _ = m.registry.Get(callId)
	} else {
		var err error
		call, _, err = m.registry.GetOrCreate(callId)
		if err != nil {
			m.log.Warn("Could not create session for invite",
				zap.String("callid", callId),
				zap.Error(err),
			)
			return
		}
	}
	if call == nil {
		return
	}

	call.SetRooms(event.RoomId, event.RoomId)
	if isMyEvent {
		call.ProcessEvent(event)
		return
	}

	call.SetIncoming(true)
	call.PrepareIncomingCall(event.Content)
	m.pendingIncoming = append(m.pendingIncoming, callId)
}

func (m *CallsManager) processAnswer(event *api.CallEvent, callId string) {
	call, found := m.registry.Get(callId)
	if !found {
		return
	}

	if call.State() == CallStateCreated {
		// The call was answered on another device before this one got
		// anywhere. Tell the session and forget about it.
		call.AnsweredElsewhere()
		m.registry.Remove(callId)
		return
	}

	call.SetRooms(event.RoomId, event.RoomId)
	call.ProcessEvent(event)
}

func (m *CallsManager) processHangup(event *api.CallEvent, callId string) {
	call, found := m.registry.Get(callId)
	if !found {
		return
	}

	call.SetRooms(event.RoomId, event.RoomId)

	// A session that was never offered or answered doesn't need the
	// redundant signaling.
	if call.State() != CallStateCreated {
		call.ProcessEvent(event)
	}
	call.SetState(CallStateEnded)

	m.registry.Remove(callId)

	// Listeners are always told about the hangup, even if the call was
	// never delivered to them: the host may be ringing without having
	// shown any call UI yet.
	m.dispatchCallHangup(call)
}

// CheckPendingIncomingCalls delivers buffered incoming calls to the
// listeners. Hosts call this once they are ready to present calls.
func (m *CallsManager) CheckPendingIncomingCalls() {
	m.executor.Execute(func() {
		if len(m.pendingIncoming) == 0 {
			return
		}

		pending := m.pendingIncoming
		m.pendingIncoming = nil
		for _, callId := range pending {
			if call, found := m.registry.Get(callId); found {
				m.dispatchIncomingCall(call)
			}
		}
	})
}

// HandleRoomMemberEvent watches membership changes of the conference
// user to detect established conference calls in a room.
func (m *CallsManager) HandleRoomMemberEvent(roomId string, sender string, membership string) {
	conferenceUserId, err := m.codec.UserIdForRoom(roomId)
	if err != nil || sender != conferenceUserId {
		return
	}

	switch membership {
	case api.MembershipJoin:
		m.dispatchConferenceStarted(roomId)
	case api.MembershipLeave:
		m.dispatchConferenceFinished(roomId)
	}
}

func (m *CallsManager) dispatchIncomingCall(call *CallSession) {
	m.log.Debug("Dispatching incoming call",
		zap.String("callid", call.Id()),
	)
	m.listeners.dispatch("incomingcall", func(listener CallListener) {
		listener.OnIncomingCall(call)
	})
}

func (m *CallsManager) dispatchCallHangup(call *CallSession) {
	m.log.Debug("Dispatching call hangup",
		zap.String("callid", call.Id()),
	)
	m.listeners.dispatch("callhangup", func(listener CallListener) {
		listener.OnCallHangup(call)
	})
}

func (m *CallsManager) dispatchConferenceStarted(roomId string) {
	m.listeners.dispatch("conferencestarted", func(listener CallListener) {
		listener.OnConferenceStarted(roomId)
	})
}

func (m *CallsManager) dispatchConferenceFinished(roomId string) {
	m.listeners.dispatch("conferencefinished", func(listener CallListener) {
		listener.OnConferenceFinished(roomId)
	})
}
