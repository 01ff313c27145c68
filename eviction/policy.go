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

// Package eviction implements the pluggable key eviction policies
// (lru, lfu, arc, random, volatile-lru, volatile-lfu) and the batch
// eviction loop that runs them against the keyspace's memory budget.
package eviction

// Policy tracks per-key recency/frequency bookkeeping and ranks keys
// for eviction. Implementations are not safe for concurrent use; the
// Manager calls them inline from its caller, the keyspace core's
// single-writer goroutine, which serializes all access.
type Policy interface {
	// Touch records a read or write of key.
	Touch(key string)
	// Add records a new key entering the keyspace.
	Add(key string)
	// Remove forgets key, e.g. after an explicit DEL.
	Remove(key string)
	// Evicted forgets key because Candidates chose it as a victim,
	// distinct from Remove: policies that track eviction history
	// (arc's ghost lists) use this to record it.
	Evicted(key string)
	// Candidates returns up to limit keys in evict-first order.
	Candidates(limit int) []string
	// Len reports how many keys the policy is currently tracking.
	Len() int
	// Clear resets the policy to empty, e.g. after FLUSHDB.
	Clear()
}

// Name identifies a Policy implementation by its config string.
type Name string

const (
	LRU         Name = "lru"
	LFU         Name = "lfu"
	ARC         Name = "arc"
	Random      Name = "random"
	VolatileLRU Name = "volatile-lru"
	VolatileLFU Name = "volatile-lfu"
)

// IsVolatileFunc reports whether a key currently carries a TTL; the
// volatile-* policies only ever evict keys this returns true for.
type IsVolatileFunc func(key string) bool

// New constructs the named Policy. isVolatile is only consulted by the
// volatile-lru/volatile-lfu variants and may be nil for the others.
func New(name Name, isVolatile IsVolatileFunc) Policy {
	switch name {
	case LFU:
		return newLFU()
	case ARC:
		return newARC()
	case Random:
		return newRandomPolicy()
	case VolatileLRU:
		return newVolatile(newLRU(), isVolatile)
	case VolatileLFU:
		return newVolatile(newLFU(), isVolatile)
	case LRU:
		fallthrough
	default:
		return newLRU()
	}
}
