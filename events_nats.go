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
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/callgrid/signaling/api"
)

const (
	// EventTypeRoomMember is the membership state event watched for
	// conference user activity.
	EventTypeRoomMember = "m.room.member"
)

// GetSubjectForUserEvents returns the NATS subject carrying the live
// event stream of one user.
func GetSubjectForUserEvents(userId string) string {
	return GetEncodedSubject("events", userId)
}

// CallEventConsumer receives decoded events from the stream. Implemented
// by CallsManager.
type CallEventConsumer interface {
	HandleCallEvent(event *api.CallEvent)
	HandleRoomMemberEvent(roomId string, sender string, membership string)
}

// CallEventsSubscriber bridges the NATS event stream to a consumer. Call
// events and membership events are forwarded, everything else is
// dropped.
type CallEventsSubscriber struct {
	log *zap.Logger

	client       NatsClient
	subscription NatsSubscription
	receiver     chan *nats.Msg

	consumer CallEventConsumer

	closer *Closer
}

func NewCallEventsSubscriber(log *zap.Logger, client NatsClient, userId string, consumer CallEventConsumer) (*CallEventsSubscriber, error) {
	subject := GetSubjectForUserEvents(userId)
	receiver := make(chan *nats.Msg, 64)
	subscription, err := client.Subscribe(subject, receiver)
	if err != nil {
		return nil, err
	}

	result := &CallEventsSubscriber{
		log: log.With(
			zap.String("subject", subject),
		),

		client:       client,
		subscription: subscription,
		receiver:     receiver,

		consumer: consumer,

		closer: NewCloser(),
	}
	go result.run()
	return result, nil
}

func (s *CallEventsSubscriber) run() {
	defer func() {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.log.Error("Error unsubscribing",
				zap.Error(err),
			)
		}
	}()

	for {
		select {
		case msg := <-s.receiver:
			s.processMessage(msg)
		case <-s.closer.C:
			return
		}
	}
}

func (s *CallEventsSubscriber) processMessage(msg *nats.Msg) {
	var event api.CallEvent
	if err := s.client.Decode(msg, &event); err != nil {
		s.log.Warn("Could not decode event",
			zap.Error(err),
		)
		return
	}

	switch {
	case event.IsCallEvent():
		s.consumer.HandleCallEvent(&event)
	case string(event.Type) == EventTypeRoomMember:
		membership, _ := api.GetStringMapString[string](event.Content, "membership")
		s.consumer.HandleRoomMemberEvent(event.RoomId, event.Sender, membership)
	}
}

func (s *CallEventsSubscriber) Close() {
	s.closer.Close()
}
