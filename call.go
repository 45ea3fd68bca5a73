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

	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

type CallState int

const (
	// CallStateCreated is the state before any negotiation happened.
	CallStateCreated CallState = iota
	CallStateWaitLocalMedia
	CallStateCreateOffer
	CallStateInviteSent
	CallStateRinging
	CallStateCreateAnswer
	CallStateConnecting
	CallStateConnected
	// CallStateEnded is terminal, the call was hung up.
	CallStateEnded
	// CallStateAnsweredElsewhere is terminal, another device of the
	// local user picked up the call.
	CallStateAnsweredElsewhere
)

func (s CallState) String() string {
	switch s {
	case CallStateCreated:
		return "created"
	case CallStateWaitLocalMedia:
		return "wait_local_media"
	case CallStateCreateOffer:
		return "create_offer"
	case CallStateInviteSent:
		return "invite_sent"
	case CallStateRinging:
		return "ringing"
	case CallStateCreateAnswer:
		return "create_answer"
	case CallStateConnecting:
		return "connecting"
	case CallStateConnected:
		return "connected"
	case CallStateEnded:
		return "ended"
	case CallStateAnsweredElsewhere:
		return "answered_elsewhere"
	default:
		return "unknown"
	}
}

func (s CallState) IsTerminal() bool {
	return s == CallStateEnded || s == CallStateAnsweredElsewhere
}

// IsInProgress reports whether negotiation has started and the call has
// not reached a terminal state yet.
func (s CallState) IsInProgress() bool {
	return s != CallStateCreated && !s.IsTerminal()
}

// CallSession tracks the signaling progress of one call. For direct
// calls the signaling and media room are the same room; conference calls
// exchange signaling in the visible room but run media through the
// dedicated room shared with the conference user.
type CallSession struct {
	log *zap.Logger
	id  string

	mu              sync.Mutex
	state           CallState
	incoming        bool
	conference      bool
	signalingRoomId string
	mediaRoomId     string
	driver          CallDriver
}

func NewCallSession(log *zap.Logger, id string) *CallSession {
	return &CallSession{
		log: log.With(
			zap.String("callid", id),
		),
		id: id,

		state: CallStateCreated,
	}
}

func (c *CallSession) Id() string {
	return c.id
}

func (c *CallSession) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the session. Transitions out of a terminal state
// are ignored.
func (c *CallSession) SetState(state CallState) {
	c.mu.Lock()
	if c.state.IsTerminal() {
		c.mu.Unlock()
		c.log.Debug("Ignoring state change on terminated call",
			zap.Stringer("state", state),
		)
		return
	}
	prev := c.state
	c.state = state
	c.mu.Unlock()

	if prev != state {
		c.log.Debug("Call state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", state),
		)
	}
}

func (c *CallSession) IsIncoming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.incoming
}

func (c *CallSession) SetIncoming(incoming bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incoming = incoming
}

func (c *CallSession) IsConference() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conference
}

func (c *CallSession) SetConference(conference bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conference = conference
}

func (c *CallSession) SignalingRoomId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signalingRoomId
}

func (c *CallSession) MediaRoomId() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mediaRoomId
}

// SetRooms binds the signaling and media rooms. Rooms are bound at most
// once per session.
func (c *CallSession) SetRooms(signalingRoomId string, mediaRoomId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signalingRoomId != "" {
		return
	}
	c.signalingRoomId = signalingRoomId
	c.mediaRoomId = mediaRoomId
}

func (c *CallSession) setDriver(driver CallDriver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driver = driver
}

func (c *CallSession) getDriver() CallDriver {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driver
}

// PrepareIncomingCall forwards the invite offer to the driver.
func (c *CallSession) PrepareIncomingCall(content api.StringMap) {
	if driver := c.getDriver(); driver != nil {
		driver.PrepareIncomingCall(content)
	}
}

// ProcessEvent forwards a signaling event to the driver.
func (c *CallSession) ProcessEvent(event *api.CallEvent) {
	if driver := c.getDriver(); driver != nil {
		driver.ProcessEvent(event)
	}
}

// AnsweredElsewhere marks the session as picked up on another device and
// notifies the driver.
func (c *CallSession) AnsweredElsewhere() {
	c.SetState(CallStateAnsweredElsewhere)
	if driver := c.getDriver(); driver != nil {
		driver.AnsweredElsewhere()
	}
}
