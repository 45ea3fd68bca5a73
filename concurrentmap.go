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
	"sync"
)

// ConcurrentMap is a mutex-guarded map. Cross-goroutine readers get
// snapshot copies, never references into the live map.
type ConcurrentMap[K comparable, V any] struct {
	mu sync.RWMutex
	d  map[K]V
}

func (m *ConcurrentMap[K, V]) Set(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.d == nil {
		m.d = make(map[K]V)
	}
	m.d[key] = value
}

func (m *ConcurrentMap[K, V]) Get(key K) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, found := m.d[key]
	return s, found
}

// GetOrSet stores value under key unless an entry already exists and
// returns the entry that ended up in the map.
func (m *ConcurrentMap[K, V]) GetOrSet(key K, value V) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.d == nil {
		m.d = make(map[K]V)
	}
	if existing, found := m.d[key]; found {
		return existing, false
	}
	m.d[key] = value
	return value, true
}

func (m *ConcurrentMap[K, V]) Del(key K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.d, key)
}

func (m *ConcurrentMap[K, V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.d)
}

// Values returns a snapshot of the current values.
func (m *ConcurrentMap[K, V]) Values() []V {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]V, 0, len(m.d))
	for _, v := range m.d {
		result = append(result, v)
	}
	return result
}

func (m *ConcurrentMap[K, V]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.d = nil
}
