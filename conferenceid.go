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
	"errors"
	"regexp"
	"slices"
	"strings"
)

const (
	// Synthetic users hosting conference calls are of the form
	// "@fs_<base64(room id)>:<domain>".
	conferenceUserPrefix = "@fs_"

	DefaultConferenceUserDomain = "callgrid.net"
)

var (
	ErrEmptyRoomId = errors.New("room id is empty")

	// Syntactic check only, room existence is never validated here.
	roomIdPattern = regexp.MustCompile(`^![A-Za-z0-9._=#&-]+:[A-Za-z0-9.-]+(:[0-9]+)?$`)
)

// ConferenceIdCodec derives the synthetic conference user id for a room
// and recognizes such ids. Derived ids are cached for the lifetime of the
// codec; the cache is append-only.
type ConferenceIdCodec struct {
	domain string

	cache ConcurrentMap[string, string]
}

func NewConferenceIdCodec(domain string) *ConferenceIdCodec {
	if domain == "" {
		domain = DefaultConferenceUserDomain
	}
	return &ConferenceIdCodec{
		domain: domain,
	}
}

// UserIdForRoom returns the conference user id for the given room id. The
// result is stable for the lifetime of the codec.
func (c *ConferenceIdCodec) UserIdForRoom(roomId string) (string, error) {
	if roomId == "" {
		return "", ErrEmptyRoomId
	}

	if userId, found := c.cache.Get(roomId); found {
		return userId, nil
	}

	encoded := base64.RawURLEncoding.EncodeToString([]byte(roomId))
	userId, _ := c.cache.GetOrSet(roomId, conferenceUserPrefix+encoded+":"+c.domain)
	return userId, nil
}

// IsConferenceUserId checks whether userId denotes a conference user. An
// id is recognized either because this codec derived it earlier, or
// because it structurally decodes to a well-formed room id. The cache
// check also recognizes ids whose room id would not pass the structural
// pattern.
func (c *ConferenceIdCodec) IsConferenceUserId(userId string) bool {
	if userId == "" {
		return false
	}

	if slices.Contains(c.cache.Values(), userId) {
		return true
	}

	suffix := ":" + c.domain
	if len(userId) < len(conferenceUserPrefix)+len(suffix) ||
		!strings.HasPrefix(userId, conferenceUserPrefix) ||
		!strings.HasSuffix(userId, suffix) {
		return false
	}

	encoded := userId[len(conferenceUserPrefix) : len(userId)-len(suffix)]
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}

	return roomIdPattern.MatchString(string(decoded))
}
