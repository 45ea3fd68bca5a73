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
	"encoding/base64"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	NatsLoopbackUrl = "nats://loopback"
)

type NatsSubscription interface {
	Unsubscribe() error
}

type NatsClient interface {
	Close()

	Subscribe(subject string, ch chan *nats.Msg) (NatsSubscription, error)
	Publish(subject string, message any) error

	Decode(msg *nats.Msg, vPtr any) error
}

// The NATS client doesn't work if a subject contains spaces. As room and
// user ids can have an arbitrary format, the variable part of a subject
// gets base64-encoded.
func GetEncodedSubject(prefix string, suffix string) string {
	return prefix + "." + base64.StdEncoding.EncodeToString([]byte(suffix))
}

type natsClient struct {
	log *zap.Logger

	conn *nats.Conn
}

func NewNatsClient(log *zap.Logger, url string) (NatsClient, error) {
	if url == NatsLoopbackUrl {
		log.Info("Using internal NATS loopback client")
		return NewLoopbackNatsClient(log)
	}

	client := &natsClient{
		log: log,
	}

	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ClosedHandler(client.onClosed),
		nats.DisconnectErrHandler(client.onDisconnected),
		nats.ReconnectHandler(client.onReconnected),
	)
	if err != nil {
		return nil, err
	}

	client.conn = conn
	return client, nil
}

func (c *natsClient) Close() {
	c.conn.Close()
}

func (c *natsClient) onClosed(conn *nats.Conn) {
	c.log.Info("NATS client closed",
		zap.Error(conn.LastError()),
	)
}

func (c *natsClient) onDisconnected(conn *nats.Conn, err error) {
	c.log.Warn("NATS client disconnected",
		zap.Error(err),
	)
}

func (c *natsClient) onReconnected(conn *nats.Conn) {
	c.log.Info("NATS client reconnected",
		zap.String("url", conn.ConnectedUrl()),
		zap.String("server", conn.ConnectedServerId()),
	)
}

func (c *natsClient) Subscribe(subject string, ch chan *nats.Msg) (NatsSubscription, error) {
	return c.conn.ChanSubscribe(subject, ch)
}

// All communication is JSON based.
func (c *natsClient) Publish(subject string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

func (c *natsClient) Decode(msg *nats.Msg, vPtr any) error {
	return json.Unmarshal(msg.Data, vPtr)
}
