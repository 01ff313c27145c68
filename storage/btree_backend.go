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

package storage

import (
	"github.com/google/btree"
)

type btreeItem struct {
	key   string
	entry Entry
}

func btreeLess(a, b btreeItem) bool {
	return a.key < b.key
}

// BtreeBackend is the embedded_btree Backend: an in-process ordered
// tree rather than a hash map, chosen when ScanFrom-heavy workloads
// (range scans, ordered KEYS) benefit from not re-sorting on every
// call.
type BtreeBackend struct {
	tree *btree.BTreeG[btreeItem]
}

// NewBtreeBackend constructs an empty BtreeBackend with the given
// node degree (the teacher's index.go uses 8; callers unsure what to
// pick should do the same).
func NewBtreeBackend(degree int) *BtreeBackend {
	return &BtreeBackend{tree: btree.NewG[btreeItem](degree, btreeLess)}
}

func (b *BtreeBackend) Get(key string) (Entry, bool, error) {
	item, ok := b.tree.Get(btreeItem{key: key})
	if !ok {
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

func (b *BtreeBackend) Put(key string, e Entry) error {
	b.tree.ReplaceOrInsert(btreeItem{key: key, entry: e})
	return nil
}

func (b *BtreeBackend) Delete(key string) (bool, error) {
	_, ok := b.tree.Delete(btreeItem{key: key})
	return ok, nil
}

func (b *BtreeBackend) Exists(key string) (bool, error) {
	_, ok := b.tree.Get(btreeItem{key: key})
	return ok, nil
}

func (b *BtreeBackend) ScanFrom(cursor string, limit int) ([]string, string, error) {
	var keys []string
	b.tree.AscendGreaterOrEqual(btreeItem{key: cursor}, func(item btreeItem) bool {
		if limit > 0 && len(keys) >= limit {
			return false
		}
		keys = append(keys, item.key)
		return true
	})
	if limit <= 0 || b.tree.Len() <= len(keys) {
		return keys, "", nil
	}
	// the key immediately after the last one returned, if any, becomes the cursor
	next := ""
	if len(keys) > 0 {
		b.tree.AscendGreaterOrEqual(btreeItem{key: keys[len(keys)-1]}, func(item btreeItem) bool {
			if item.key > keys[len(keys)-1] {
				next = item.key
				return false
			}
			return true
		})
	}
	return keys, next, nil
}

func (b *BtreeBackend) Clear() error {
	b.tree.Clear(false)
	return nil
}

func (b *BtreeBackend) Size() (int, error) {
	return b.tree.Len(), nil
}

func (b *BtreeBackend) Close() error { return nil }
