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

	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

const (
	RoomPresetPrivateChat = "private_chat"
)

type RoomMember struct {
	UserId     string
	Membership string
}

// Room exposes the membership queries and operations the call core needs
// from the surrounding system. Implementations live outside this module.
type Room interface {
	Id() string

	JoinedMemberCount() int
	MemberCount() int
	Member(userId string) (RoomMember, bool)

	Invite(ctx context.Context, userId string) error

	// IsConferenceUserRoom flags the dedicated 1:1 room with a
	// conference user that carries conference media.
	IsConferenceUserRoom() bool
	SetConferenceUserRoom(value bool)
}

type RoomCreateParams struct {
	Preset string
	Invite []string
}

type RoomDirectory interface {
	GetRoom(roomId string) (Room, bool)
	Rooms() []Room
	CreateRoom(ctx context.Context, params *RoomCreateParams) (Room, error)
}

// CreateCallInRoom starts a call in the given room.
//
// For a room with exactly two joined members this is a direct call bound
// to that room. For larger rooms the conference user is invited (unless
// already joined), the dedicated 1:1 room with the conference user is
// located or created, and the resulting session signals in the original
// room while running media through the dedicated room.
//
// The first failure is returned as-is; completed steps (e.g. an invite
// already sent) are not rolled back. Use api.ClassifyError to tell
// network, rate-limit, protocol and unexpected failures apart.
func (m *CallsManager) CreateCallInRoom(ctx context.Context, roomId string) (*CallSession, error) {
	if m.rooms == nil {
		return nil, api.NewError(api.ErrorCodeNotFound, "no room directory configured")
	}

	room, found := m.rooms.GetRoom(roomId)
	if !found {
		return nil, api.NewError(api.ErrorCodeNotFound, "room not found")
	}

	if !m.IsSupported() {
		return nil, ErrCallUnsupported
	}

	joined := room.JoinedMemberCount()
	m.log.Debug("Creating call in room",
		zap.String("roomid", roomId),
		zap.Int("joined", joined),
	)

	if joined <= 1 {
		return nil, api.NewError(api.ErrorCodeTooFewMembers, "too few joined members to start a call")
	}

	if joined == 2 {
		call, _, err := m.registry.GetOrCreate("")
		if err != nil {
			return nil, err
		}

		call.SetRooms(roomId, roomId)
		return call, nil
	}

	if err := m.inviteConferenceUser(ctx, room); err != nil {
		return nil, err
	}

	conferenceRoom, err := m.conferenceUserRoom(ctx, roomId)
	if err != nil {
		return nil, err
	}

	call, _, err := m.registry.GetOrCreate("")
	if err != nil {
		return nil, err
	}

	call.SetRooms(roomId, conferenceRoom.Id())
	call.SetConference(true)
	return call, nil
}

// inviteConferenceUser makes sure the conference user is (being) invited
// to the room. Nothing to do if it already joined.
func (m *CallsManager) inviteConferenceUser(ctx context.Context, room Room) error {
	conferenceUserId, err := m.codec.UserIdForRoom(room.Id())
	if err != nil {
		return err
	}

	if member, found := room.Member(conferenceUserId); found && member.Membership == api.MembershipJoin {
		return nil
	}

	return room.Invite(ctx, conferenceUserId)
}

// conferenceUserRoom returns the dedicated 1:1 room shared with the
// conference user of roomId, creating it if it doesn't exist yet.
func (m *CallsManager) conferenceUserRoom(ctx context.Context, roomId string) (Room, error) {
	conferenceUserId, err := m.codec.UserIdForRoom(roomId)
	if err != nil {
		return nil, err
	}

	for _, room := range m.rooms.Rooms() {
		if !room.IsConferenceUserRoom() || room.MemberCount() != 2 {
			continue
		}
		if _, found := room.Member(conferenceUserId); found {
			return room, nil
		}
	}

	m.log.Debug("Creating conference user room",
		zap.String("roomid", roomId),
	)
	room, err := m.rooms.CreateRoom(ctx, &RoomCreateParams{
		Preset: RoomPresetPrivateChat,
		Invite: []string{conferenceUserId},
	})
	if err != nil {
		return nil, err
	}

	room.SetConferenceUserRoom(true)
	return room, nil
}
