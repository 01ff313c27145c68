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

import "sort"

// lfuPolicy ranks keys by access count, least-frequently-used first.
// Ties break on insertion order, which the monotonically increasing
// seq field gives us for free.
type lfuPolicy struct {
	count map[string]int64
	seq   map[string]int64
	next  int64
}

func newLFU() *lfuPolicy {
	return &lfuPolicy{count: make(map[string]int64), seq: make(map[string]int64)}
}

func (p *lfuPolicy) Touch(key string) {
	if _, ok := p.count[key]; !ok {
		p.Add(key)
		return
	}
	p.count[key]++
}

func (p *lfuPolicy) Add(key string) {
	if _, ok := p.count[key]; ok {
		return
	}
	p.count[key] = 0
	p.seq[key] = p.next
	p.next++
}

func (p *lfuPolicy) Remove(key string) {
	delete(p.count, key)
	delete(p.seq, key)
}

func (p *lfuPolicy) Candidates(limit int) []string {
	keys := make([]string, 0, len(p.count))
	for k := range p.count {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if p.count[keys[i]] != p.count[keys[j]] {
			return p.count[keys[i]] < p.count[keys[j]]
		}
		return p.seq[keys[i]] < p.seq[keys[j]]
	})
	if limit > 0 && limit < len(keys) {
		keys = keys[:limit]
	}
	return keys
}

func (p *lfuPolicy) Evicted(key string) { p.Remove(key) }

func (p *lfuPolicy) Len() int { return len(p.count) }

func (p *lfuPolicy) Clear() {
	p.count = make(map[string]int64)
	p.seq = make(map[string]int64)
	p.next = 0
}
