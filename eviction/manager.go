/*
Copyright (C) 2026  HyperKV Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package eviction

// DefaultBatchSize is the number of keys evicted per pass, per §4.6.
const DefaultBatchSize = 16

// EvictFunc deletes a single key from the keyspace and reports its
// encoded size in bytes, so the Manager can track memory freed.
type EvictFunc func(key string) (freedBytes int64, ok bool)

// Manager runs a Policy against a memory budget. It owns no
// goroutine of its own — the keyspace core's single-writer loop
// calls Touch/Add/Remove/MaybeEvict inline, the same reentrant-safe
// contract storage.CacheManager gives its single goroutine by
// serializing all operations through one channel. A Manager instead
// is driven synchronously because the keyspace core already is the
// single writer; adding a second goroutine here would just move the
// serialization point without simplifying anything.
type Manager struct {
	policy          Policy
	memoryBudget    int64
	memoryThreshold float64
	batchSize       int
	currentMemory   int64
}

// NewManager constructs a Manager. memoryBudget <= 0 disables
// eviction entirely (MaybeEvict becomes a no-op), matching max_memory
// 0 in the config surface.
func NewManager(policy Policy, memoryBudget int64, memoryThreshold float64, batchSize int) *Manager {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if memoryThreshold <= 0 || memoryThreshold > 1 {
		memoryThreshold = 0.9
	}
	return &Manager{
		policy:          policy,
		memoryBudget:    memoryBudget,
		memoryThreshold: memoryThreshold,
		batchSize:       batchSize,
	}
}

// Touch records an access to key.
func (m *Manager) Touch(key string) { m.policy.Touch(key) }

// Add records key entering the keyspace along with its size in bytes.
func (m *Manager) Add(key string, sizeBytes int64) {
	m.policy.Add(key)
	m.currentMemory += sizeBytes
}

// Remove forgets key and its size, e.g. after DEL or an expiry sweep.
func (m *Manager) Remove(key string, sizeBytes int64) {
	m.policy.Remove(key)
	m.currentMemory -= sizeBytes
	if m.currentMemory < 0 {
		m.currentMemory = 0
	}
}

// evict forgets key and its size because the policy's own Candidates
// chose it as a victim, as opposed to Remove (explicit DEL/expiry).
// Policies that keep eviction history (arc's ghost lists) use the
// distinction to record it.
func (m *Manager) evict(key string, sizeBytes int64) {
	m.policy.Evicted(key)
	m.currentMemory -= sizeBytes
	if m.currentMemory < 0 {
		m.currentMemory = 0
	}
}

// OverBudget reports whether current memory usage exceeds the budget.
func (m *Manager) OverBudget() bool {
	return m.memoryBudget > 0 && m.currentMemory > m.memoryBudget
}

// Clear resets all bookkeeping to empty, e.g. after FLUSHDB.
func (m *Manager) Clear() {
	m.policy.Clear()
	m.currentMemory = 0
}

// MaybeEvict runs batches of eviction via evict until memory usage
// falls at or below memoryThreshold*memoryBudget, or candidates run
// out. It returns the keys evicted, in eviction order. It does not
// re-enter the keyspace's write path itself — evict is the only
// callback into keyspace code, and it must not call back into
// Manager.
func (m *Manager) MaybeEvict(evict EvictFunc) []string {
	if m.memoryBudget <= 0 {
		return nil
	}
	target := int64(float64(m.memoryBudget) * m.memoryThreshold)
	var evicted []string
	for m.currentMemory > target {
		candidates := m.policy.Candidates(m.batchSize)
		if len(candidates) == 0 {
			break
		}
		progress := false
		for _, key := range candidates {
			freed, ok := evict(key)
			if !ok {
				continue
			}
			progress = true
			m.evict(key, freed)
			evicted = append(evicted, key)
			if m.currentMemory <= target {
				break
			}
		}
		if !progress {
			break
		}
	}
	return evicted
}
