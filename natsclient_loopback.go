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
	"encoding/json"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// LoopbackNatsClient delivers published messages to in-process
// subscribers only. Used when running without a NATS server and in
// tests.
type LoopbackNatsClient struct {
	log *zap.Logger

	mu            sync.Mutex
	subscriptions map[string]map[*loopbackNatsSubscription]bool
}

func NewLoopbackNatsClient(log *zap.Logger) (NatsClient, error) {
	return &LoopbackNatsClient{
		log: log,

		subscriptions: make(map[string]map[*loopbackNatsSubscription]bool),
	}, nil
}

func (c *LoopbackNatsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscriptions = nil
}

type loopbackNatsSubscription struct {
	subject string
	client  *LoopbackNatsClient

	ch chan *nats.Msg
}

func (s *loopbackNatsSubscription) Unsubscribe() error {
	s.client.unsubscribe(s)
	return nil
}

func (c *LoopbackNatsClient) Subscribe(subject string, ch chan *nats.Msg) (NatsSubscription, error) {
	if strings.HasSuffix(subject, ".") || strings.Contains(subject, " ") {
		return nil, nats.ErrBadSubject
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscriptions == nil {
		return nil, nats.ErrConnectionClosed
	}

	s := &loopbackNatsSubscription{
		subject: subject,
		client:  c,
		ch:      ch,
	}
	subs, found := c.subscriptions[subject]
	if !found {
		subs = make(map[*loopbackNatsSubscription]bool)
		c.subscriptions[subject] = subs
	}
	subs[s] = true
	return s, nil
}

func (c *LoopbackNatsClient) unsubscribe(s *loopbackNatsSubscription) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if subs, found := c.subscriptions[s.subject]; found {
		delete(subs, s)
		if len(subs) == 0 {
			delete(c.subscriptions, s.subject)
		}
	}
}

func (c *LoopbackNatsClient) Publish(subject string, message any) error {
	if strings.HasSuffix(subject, ".") || strings.Contains(subject, " ") {
		return nats.ErrBadSubject
	}

	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.subscriptions == nil {
		c.mu.Unlock()
		return nats.ErrConnectionClosed
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	var channels []chan *nats.Msg
	for sub := range c.subscriptions[subject] {
		channels = append(channels, sub.ch)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- msg:
		default:
			c.log.Warn("Slow consumer, dropping message",
				zap.String("subject", subject),
			)
		}
	}
	return nil
}

func (c *LoopbackNatsClient) Decode(msg *nats.Msg, vPtr any) error {
	return json.Unmarshal(msg.Data, vPtr)
}
