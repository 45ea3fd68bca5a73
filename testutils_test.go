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
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/callgrid/signaling/api"
)

const (
	testTimeout = 5 * time.Second

	testLocalUserId = "@alice:example.org"
)

func GetLoggerForTest(t testing.TB) *zap.Logger {
	return zaptest.NewLogger(t)
}

type fakeCallDriver struct {
	session *CallSession

	mu                sync.Mutex
	prepared          []api.StringMap
	events            []*api.CallEvent
	answeredElsewhere int
}

func (d *fakeCallDriver) PrepareIncomingCall(content api.StringMap) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepared = append(d.prepared, content)
}

func (d *fakeCallDriver) ProcessEvent(event *api.CallEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
}

func (d *fakeCallDriver) AnsweredElsewhere() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.answeredElsewhere++
}

func (d *fakeCallDriver) eventCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

func (d *fakeCallDriver) preparedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.prepared)
}

func (d *fakeCallDriver) answeredElsewhereCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.answeredElsewhere
}

type fakeCallBackend struct {
	backendType string
	supported   bool
	driverErr   error

	mu          sync.Mutex
	drivers     []*fakeCallDriver
	credentials []*api.TurnCredentials
}

func newFakeCallBackend(backendType string, supported bool) *fakeCallBackend {
	return &fakeCallBackend{
		backendType: backendType,
		supported:   supported,
	}
}

func (b *fakeCallBackend) Type() string {
	return b.backendType
}

func (b *fakeCallBackend) IsSupported(env *Environment) bool {
	return b.supported
}

func (b *fakeCallBackend) NewDriver(session *CallSession, credentials *api.TurnCredentials) (CallDriver, error) {
	if b.driverErr != nil {
		return nil, b.driverErr
	}

	driver := &fakeCallDriver{
		session: session,
	}
	b.mu.Lock()
	b.drivers = append(b.drivers, driver)
	b.credentials = append(b.credentials, credentials)
	b.mu.Unlock()
	return driver, nil
}

func (b *fakeCallBackend) lastCredentials(t *testing.T) *api.TurnCredentials {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.credentials) == 0 {
		t.Fatal("no driver was created")
	}
	return b.credentials[len(b.credentials)-1]
}

func (b *fakeCallBackend) driverCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.drivers)
}

func (b *fakeCallBackend) lastDriver(t *testing.T) *fakeCallDriver {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.drivers) == 0 {
		t.Fatal("no driver was created")
	}
	return b.drivers[len(b.drivers)-1]
}

type fakeRoom struct {
	id     string
	joined int

	mu                 sync.Mutex
	members            map[string]string
	conferenceUserRoom bool
	inviteErr          error
	invited            []string
}

func newFakeRoom(id string, joined int) *fakeRoom {
	return &fakeRoom{
		id:      id,
		joined:  joined,
		members: make(map[string]string),
	}
}

func (r *fakeRoom) Id() string {
	return r.id
}

func (r *fakeRoom) JoinedMemberCount() int {
	return r.joined
}

func (r *fakeRoom) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *fakeRoom) Member(userId string) (RoomMember, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	membership, found := r.members[userId]
	if !found {
		return RoomMember{}, false
	}
	return RoomMember{
		UserId:     userId,
		Membership: membership,
	}, true
}

func (r *fakeRoom) Invite(ctx context.Context, userId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inviteErr != nil {
		return r.inviteErr
	}
	r.invited = append(r.invited, userId)
	r.members[userId] = api.MembershipInvite
	return nil
}

func (r *fakeRoom) IsConferenceUserRoom() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conferenceUserRoom
}

func (r *fakeRoom) SetConferenceUserRoom(value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conferenceUserRoom = value
}

func (r *fakeRoom) setMember(userId string, membership string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[userId] = membership
}

type fakeRoomDirectory struct {
	mu        sync.Mutex
	rooms     []*fakeRoom
	created   []*fakeRoom
	createErr error
	nextId    int
}

func (d *fakeRoomDirectory) addRoom(room *fakeRoom) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rooms = append(d.rooms, room)
}

func (d *fakeRoomDirectory) GetRoom(roomId string) (Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, room := range d.rooms {
		if room.Id() == roomId {
			return room, true
		}
	}
	return nil, false
}

func (d *fakeRoomDirectory) Rooms() []Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]Room, 0, len(d.rooms))
	for _, room := range d.rooms {
		result = append(result, room)
	}
	return result
}

func (d *fakeRoomDirectory) CreateRoom(ctx context.Context, params *RoomCreateParams) (Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.createErr != nil {
		return nil, d.createErr
	}

	d.nextId++
	room := newFakeRoom(fmt.Sprintf("!created-%d:example.org", d.nextId), 1)
	room.members[testLocalUserId] = api.MembershipJoin
	for _, userId := range params.Invite {
		room.members[userId] = api.MembershipInvite
	}
	d.rooms = append(d.rooms, room)
	d.created = append(d.created, room)
	return room, nil
}

type testListener struct {
	mu       sync.Mutex
	incoming []*CallSession
	hangups  []*CallSession
	started  []string
	finished []string

	panicOnIncomingCall bool
}

func (l *testListener) OnIncomingCall(call *CallSession) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.panicOnIncomingCall {
		panic("listener failure")
	}
	l.incoming = append(l.incoming, call)
}

func (l *testListener) OnCallHangup(call *CallSession) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hangups = append(l.hangups, call)
}

func (l *testListener) OnConferenceStarted(roomId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, roomId)
}

func (l *testListener) OnConferenceFinished(roomId string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finished = append(l.finished, roomId)
}

func (l *testListener) incomingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.incoming)
}

func (l *testListener) hangupCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hangups)
}

func newRegistryForTest(t *testing.T, backends ...CallBackend) *CallRegistry {
	if len(backends) == 0 {
		backends = []CallBackend{
			newFakeCallBackend(CallBackendTypeDefault, true),
		}
	}
	return NewCallRegistry(GetLoggerForTest(t), NewEnvironment(nil), backends, CallBackendTypeDefault)
}

func newManagerForTest(t *testing.T, rooms RoomDirectory, backends ...CallBackend) *CallsManager {
	t.Helper()

	registry := newRegistryForTest(t, backends...)
	manager := NewCallsManager(GetLoggerForTest(t), nil, testLocalUserId, rooms, registry, NewConferenceIdCodec(""), nil)
	t.Cleanup(manager.Close)
	return manager
}

// flushManager waits until all events queued so far have been processed.
func flushManager(t *testing.T, manager *CallsManager) {
	t.Helper()

	done := make(chan struct{})
	manager.executor.Execute(func() {
		close(done)
	})
	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for executor")
	}
}

func makeCallEvent(eventType api.CallEventType, roomId string, sender string, callId string, age time.Duration) *api.CallEvent {
	content := api.StringMap{}
	if callId != "" {
		content["call_id"] = callId
	}
	return &api.CallEvent{
		Type:           eventType,
		RoomId:         roomId,
		Sender:         sender,
		OriginServerTs: time.Now().Add(-age).UnixMilli(),
		Content:        content,
	}
}
