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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callgrid/signaling/api"
)

func TestCreateCallInRoom_Direct(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	rooms.addRoom(newFakeRoom(testRoomId, 2))
	manager := newManagerForTest(t, rooms)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	require.NoError(t, err)
	require.NotNil(t, call)

	// A direct call signals and runs media in the same room.
	assert.Equal(t, testRoomId, call.SignalingRoomId())
	assert.Equal(t, testRoomId, call.MediaRoomId())
	assert.False(t, call.IsConference())
	assert.NotEmpty(t, call.Id())
}

func TestCreateCallInRoom_Conference(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	room := newFakeRoom(testRoomId, 5)
	rooms.addRoom(room)
	manager := newManagerForTest(t, rooms)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	require.NoError(t, err)
	require.NotNil(t, call)

	conferenceUserId, err := manager.codec.UserIdForRoom(testRoomId)
	require.NoError(t, err)

	// The conference user was invited to the visible room.
	assert.Equal(t, []string{conferenceUserId}, room.invited)

	// Media runs through the dedicated room with the conference user.
	require.Len(t, rooms.created, 1)
	conferenceRoom := rooms.created[0]
	assert.True(t, conferenceRoom.IsConferenceUserRoom())
	_, found := conferenceRoom.Member(conferenceUserId)
	assert.True(t, found)

	assert.Equal(t, testRoomId, call.SignalingRoomId())
	assert.Equal(t, conferenceRoom.Id(), call.MediaRoomId())
	assert.True(t, call.IsConference())
}

func TestCreateCallInRoom_ConferenceRoomReused(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	room := newFakeRoom(testRoomId, 5)
	rooms.addRoom(room)
	manager := newManagerForTest(t, rooms)

	conferenceUserId, err := manager.codec.UserIdForRoom(testRoomId)
	require.NoError(t, err)

	existing := newFakeRoom("!conference:example.org", 2)
	existing.SetConferenceUserRoom(true)
	existing.setMember(testLocalUserId, api.MembershipJoin)
	existing.setMember(conferenceUserId, api.MembershipJoin)
	rooms.addRoom(existing)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	require.NoError(t, err)

	assert.Empty(t, rooms.created)
	assert.Equal(t, existing.Id(), call.MediaRoomId())
}

func TestCreateCallInRoom_ConferenceUserAlreadyJoined(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	room := newFakeRoom(testRoomId, 5)
	rooms.addRoom(room)
	manager := newManagerForTest(t, rooms)

	conferenceUserId, err := manager.codec.UserIdForRoom(testRoomId)
	require.NoError(t, err)
	room.setMember(conferenceUserId, api.MembershipJoin)

	_, err = manager.CreateCallInRoom(t.Context(), testRoomId)
	require.NoError(t, err)

	// No second invite for a joined conference user.
	assert.Empty(t, room.invited)
}

func TestCreateCallInRoom_RoomNotFound(t *testing.T) {
	t.Parallel()

	manager := newManagerForTest(t, &fakeRoomDirectory{})

	call, err := manager.CreateCallInRoom(t.Context(), "!unknown:example.org")
	assert.Nil(t, call)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorCodeNotFound, apiErr.Code)
}

func TestCreateCallInRoom_TooFewMembers(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	rooms.addRoom(newFakeRoom(testRoomId, 1))
	manager := newManagerForTest(t, rooms)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	assert.Nil(t, call)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorCodeTooFewMembers, apiErr.Code)
	assert.False(t, manager.HasActiveCalls())
}

func TestCreateCallInRoom_Unsupported(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	rooms.addRoom(newFakeRoom(testRoomId, 2))
	manager := newManagerForTest(t, rooms, newFakeCallBackend(CallBackendTypeDefault, false))

	_, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	assert.ErrorIs(t, err, ErrCallUnsupported)
}

func TestCreateCallInRoom_InviteFails(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	room := newFakeRoom(testRoomId, 5)
	room.inviteErr = errors.New("federation unreachable")
	rooms.addRoom(room)
	manager := newManagerForTest(t, rooms)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	assert.Nil(t, call)
	assert.ErrorIs(t, err, room.inviteErr)
	assert.False(t, manager.HasActiveCalls())
}

func TestCreateCallInRoom_CreateRoomFails(t *testing.T) {
	t.Parallel()

	rooms := &fakeRoomDirectory{}
	rooms.addRoom(newFakeRoom(testRoomId, 5))
	rooms.createErr = api.NewError(api.ErrorCodeLimitExceeded, "slow down")
	manager := newManagerForTest(t, rooms)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	assert.Nil(t, call)
	assert.Equal(t, api.KindRateLimited, api.ClassifyError(err))
	assert.False(t, manager.HasActiveCalls())
}

func TestCreateCallInRoom_NoDirectory(t *testing.T) {
	t.Parallel()

	manager := newManagerForTest(t, nil)

	call, err := manager.CreateCallInRoom(t.Context(), testRoomId)
	assert.Nil(t, call)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorCodeNotFound, apiErr.Code)
}
