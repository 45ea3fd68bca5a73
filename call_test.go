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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallState(t *testing.T) {
	t.Parallel()

	assert.False(t, CallStateCreated.IsTerminal())
	assert.False(t, CallStateConnected.IsTerminal())
	assert.True(t, CallStateEnded.IsTerminal())
	assert.True(t, CallStateAnsweredElsewhere.IsTerminal())

	assert.False(t, CallStateCreated.IsInProgress())
	assert.True(t, CallStateRinging.IsInProgress())
	assert.True(t, CallStateConnected.IsInProgress())
	assert.False(t, CallStateEnded.IsInProgress())
	assert.False(t, CallStateAnsweredElsewhere.IsInProgress())
}

func TestCallSession_TerminalStateSticks(t *testing.T) {
	t.Parallel()

	call := NewCallSession(GetLoggerForTest(t), "call1")
	assert.Equal(t, CallStateCreated, call.State())

	call.SetState(CallStateRinging)
	assert.Equal(t, CallStateRinging, call.State())

	call.SetState(CallStateEnded)
	assert.Equal(t, CallStateEnded, call.State())

	// No transitions out of a terminal state.
	call.SetState(CallStateConnected)
	assert.Equal(t, CallStateEnded, call.State())
}

func TestCallSession_RoomsBindOnce(t *testing.T) {
	t.Parallel()

	call := NewCallSession(GetLoggerForTest(t), "call1")
	assert.Empty(t, call.SignalingRoomId())
	assert.Empty(t, call.MediaRoomId())

	call.SetRooms("!signaling:example.org", "!media:example.org")
	assert.Equal(t, "!signaling:example.org", call.SignalingRoomId())
	assert.Equal(t, "!media:example.org", call.MediaRoomId())

	call.SetRooms("!other:example.org", "!other:example.org")
	assert.Equal(t, "!signaling:example.org", call.SignalingRoomId())
	assert.Equal(t, "!media:example.org", call.MediaRoomId())
}

func TestCallSession_AnsweredElsewhere(t *testing.T) {
	t.Parallel()

	call := NewCallSession(GetLoggerForTest(t), "call1")
	driver := &fakeCallDriver{session: call}
	call.setDriver(driver)

	call.AnsweredElsewhere()
	assert.Equal(t, CallStateAnsweredElsewhere, call.State())
	assert.Equal(t, 1, driver.answeredElsewhereCount())
}

func TestCallSession_NoDriver(t *testing.T) {
	t.Parallel()

	// Forwarding without a driver must not panic.
	call := NewCallSession(GetLoggerForTest(t), "call1")
	call.PrepareIncomingCall(nil)
	call.ProcessEvent(nil)
	call.AnsweredElsewhere()
}
