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
	"github.com/prometheus/client_golang/prometheus"
)

var (
	statsCallEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "calls",
		Name:      "events_total",
		Help:      "The total number of processed call events",
	}, []string{"type"})
	statsMalformedCallEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "calls",
		Name:      "malformed_events_total",
		Help:      "The total number of dropped malformed call events",
	})
	statsStaleInvitesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "calls",
		Name:      "stale_invites_total",
		Help:      "The total number of invites dropped for exceeding the freshness threshold",
	})
	statsCallsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signaling",
		Subsystem: "calls",
		Name:      "current",
		Help:      "The current number of call sessions",
	})
	statsTurnRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signaling",
		Subsystem: "turn",
		Name:      "refresh_total",
		Help:      "The total number of TURN credential refresh attempts by result",
	}, []string{"result"})

	callsStats = []prometheus.Collector{
		statsCallEventsTotal,
		statsMalformedCallEventsTotal,
		statsStaleInvitesTotal,
		statsCallsCurrent,
		statsTurnRefreshTotal,
	}
)

func registerAll(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := prometheus.DefaultRegisterer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

func RegisterStats() {
	registerAll(callsStats...)
}
