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
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

type CallEventType string

const (
	CallEventInvite     CallEventType = "m.call.invite"
	CallEventCandidates CallEventType = "m.call.candidates"
	CallEventAnswer     CallEventType = "m.call.answer"
	CallEventHangup     CallEventType = "m.call.hangup"

	callEventPrefix = "m.call."
)

const (
	MembershipInvite = "invite"
	MembershipJoin   = "join"
	MembershipLeave  = "leave"
)

// CallEvent is one signaling event received from the federated event
// stream. Events are immutable once received; the content is kept opaque
// except for the fields this core needs.
type CallEvent struct {
	Type           CallEventType `json:"type"`
	RoomId         string        `json:"room_id"`
	Sender         string        `json:"sender"`
	OriginServerTs int64         `json:"origin_server_ts"`
	Content        StringMap     `json:"content,omitempty"`
}

func (e *CallEvent) IsCallEvent() bool {
	return strings.HasPrefix(string(e.Type), callEventPrefix)
}

// CallId returns the call id carried in the event content.
func (e *CallEvent) CallId() (string, bool) {
	callId, found := GetStringMapString[string](e.Content, "call_id")
	if !found || callId == "" {
		return "", false
	}
	return callId, true
}

// Age returns how long ago the event was created on the origin server.
func (e *CallEvent) Age(now time.Time) time.Duration {
	return now.Sub(time.UnixMilli(e.OriginServerTs))
}

func (e *CallEvent) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("Could not serialize %#v: %s", e, err)
	}
	return string(data)
}

// TurnCredentials are short-lived relay credentials as returned by the
// credentials endpoint. The TTL is in seconds.
type TurnCredentials struct {
	Username string   `json:"username,omitempty"`
	Password string   `json:"password,omitempty"`
	URIs     []string `json:"uris,omitempty"`
	TTL      int64    `json:"ttl,omitempty"`
}

const (
	ErrorCodeNotSupported  = "not_supported"
	ErrorCodeNotFound      = "not_found"
	ErrorCodeLimitExceeded = "limit_exceeded"
	ErrorCodeTooFewMembers = "too_few_members"
)

type Error struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

func NewError(code string, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func NewErrorDetail(code string, message string, details any) *Error {
	rawDetails, err := json.Marshal(details)
	if err != nil {
		return NewError("internal_error", "Could not marshal error details")
	}

	return &Error{
		Code:    code,
		Message: message,
		Details: rawDetails,
	}
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorKind classifies failures for retry policies. Callers must not
// dispatch on concrete error types, only on the kind.
type ErrorKind int

const (
	// KindNetwork is a transient transport-level failure.
	KindNetwork ErrorKind = iota
	// KindRateLimited is a protocol error telling us to slow down.
	KindRateLimited
	// KindProtocol is any other error reported by the remote server.
	KindProtocol
	// KindUnexpected is a local or unclassified failure.
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRateLimited:
		return "ratelimited"
	case KindProtocol:
		return "protocol"
	default:
		return "unexpected"
	}
}

// ClassifyError maps an error to its ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindUnexpected
	}

	var protocolError *Error
	if errors.As(err, &protocolError) {
		if protocolError.Code == ErrorCodeLimitExceeded {
			return KindRateLimited
		}
		return KindProtocol
	}

	var netError net.Error
	if errors.As(err, &netError) {
		return KindNetwork
	}

	return KindUnexpected
}
