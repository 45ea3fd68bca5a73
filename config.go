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
	"iter"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/dlintw/goconf"
)

const (
	// Invites older than this never create or mutate a session.
	DefaultStaleInviteThreshold = 30 * time.Second
)

var (
	searchVarsRegexp = regexp.MustCompile(`\$\([A-Za-z][A-Za-z0-9_]*\)`)
)

func replaceEnvVars(s string) string {
	return searchVarsRegexp.ReplaceAllStringFunc(s, func(name string) string {
		name = name[2 : len(name)-1]
		value, found := os.LookupEnv(name)
		if !found {
			return name
		}

		return value
	})
}

// GetStringOptionWithEnv will get the string option and resolve any
// environment variable references in the form "$(VAR)".
func GetStringOptionWithEnv(config *goconf.ConfigFile, section string, option string) (string, error) {
	value, err := config.GetString(section, option)
	if err != nil {
		return "", err
	}

	value = replaceEnvVars(value)
	return value, nil
}

// SplitEntries returns an iterator over all non-empty substrings of s
// separated by sep.
func SplitEntries(s string, sep string) iter.Seq[string] {
	return func(yield func(entry string) bool) {
		for entry := range strings.SplitSeq(s, sep) {
			if entry = strings.TrimSpace(entry); entry != "" {
				if !yield(entry) {
					return
				}
			}
		}
	}
}

// CallsConfig bundles the tunables of the call core.
type CallsConfig struct {
	// PreferredBackend is probed first when creating sessions.
	PreferredBackend string

	// ConferenceUserDomain is the domain of synthetic conference users.
	ConferenceUserDomain string

	StaleInviteThreshold time.Duration

	TurnRetryDelay time.Duration
	// Static TURN servers reported when no credentials endpoint is
	// used.
	TurnServers []string
	TurnTTL     int64
}

func DefaultCallsConfig() *CallsConfig {
	return &CallsConfig{
		PreferredBackend:     CallBackendTypeDefault,
		ConferenceUserDomain: DefaultConferenceUserDomain,
		StaleInviteThreshold: DefaultStaleInviteThreshold,
		TurnRetryDelay:       DefaultTurnRetryDelay,
	}
}

func NewCallsConfig(config *goconf.ConfigFile) *CallsConfig {
	result := DefaultCallsConfig()
	if config == nil {
		return result
	}

	if backend, _ := config.GetString("calls", "backend"); backend != "" {
		result.PreferredBackend = backend
	}
	if threshold, err := config.GetInt("calls", "staleinvitethreshold"); err == nil && threshold > 0 {
		result.StaleInviteThreshold = time.Duration(threshold) * time.Second
	}

	if domain, _ := config.GetString("conference", "domain"); domain != "" {
		result.ConferenceUserDomain = domain
	}

	if retry, err := config.GetInt("turn", "retry"); err == nil && retry > 0 {
		result.TurnRetryDelay = time.Duration(retry) * time.Second
	}
	if servers, _ := GetStringOptionWithEnv(config, "turn", "servers"); servers != "" {
		result.TurnServers = slices.Collect(SplitEntries(servers, ","))
	}
	if ttl, err := config.GetInt("turn", "ttl"); err == nil && ttl > 0 {
		result.TurnTTL = int64(ttl)
	}

	return result
}
