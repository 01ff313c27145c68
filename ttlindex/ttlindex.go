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

// Package ttlindex tracks key expiration deadlines separately from
// the keyspace itself, so both the active sweeper and the lazy
// expire-on-read path can find due keys without scanning the whole
// keyspace.
package ttlindex

import (
	"github.com/google/btree"
)

type deadlineEntry struct {
	deadline int64 // unix nanos
	key      string
}

func less(a, b deadlineEntry) bool {
	if a.deadline != b.deadline {
		return a.deadline < b.deadline
	}
	return a.key < b.key
}

// Index is an ordered (deadline, key) structure supporting set/remove
// in O(log n) and a batch sweep of everything due by a given instant.
// It is not safe for concurrent use; callers serialize access the
// same way the keyspace core serializes writes.
type Index struct {
	tree     *btree.BTreeG[deadlineEntry]
	byKey    map[string]int64 // key -> current deadline, for idempotent Set/Remove
}

// New constructs an empty Index.
func New() *Index {
	return &Index{
		tree:  btree.NewG[deadlineEntry](32, less),
		byKey: make(map[string]int64),
	}
}

// Set installs or replaces key's expiration deadline (unix nanos).
// Calling Set again for the same key removes the old deadline first,
// so Set is idempotent with respect to the index's contents.
func (idx *Index) Set(key string, deadlineNanos int64) {
	if old, ok := idx.byKey[key]; ok {
		idx.tree.Delete(deadlineEntry{deadline: old, key: key})
	}
	idx.tree.ReplaceOrInsert(deadlineEntry{deadline: deadlineNanos, key: key})
	idx.byKey[key] = deadlineNanos
}

// Remove drops key's deadline, if any. It is a no-op (not an error)
// when key has no tracked deadline, matching PERSIST's semantics.
func (idx *Index) Remove(key string) {
	old, ok := idx.byKey[key]
	if !ok {
		return
	}
	idx.tree.Delete(deadlineEntry{deadline: old, key: key})
	delete(idx.byKey, key)
}

// Get returns key's current deadline, if tracked.
func (idx *Index) Get(key string) (int64, bool) {
	d, ok := idx.byKey[key]
	return d, ok
}

// Len returns the number of keys currently tracked.
func (idx *Index) Len() int {
	return len(idx.byKey)
}

// Sweep pops up to budget keys whose deadline is at or before now,
// removing them from the index and returning them for the caller to
// delete from the keyspace. A budget <= 0 means unbounded.
func (idx *Index) Sweep(nowNanos int64, budget int) []string {
	var due []string
	idx.tree.Ascend(func(e deadlineEntry) bool {
		if e.deadline > nowNanos {
			return false
		}
		if budget > 0 && len(due) >= budget {
			return false
		}
		due = append(due, e.key)
		return true
	})
	for _, key := range due {
		idx.Remove(key)
	}
	return due
}
