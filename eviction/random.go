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

import "math/rand"

// randomPolicy tracks nothing but set membership; Candidates returns
// a random sample, the cheapest possible policy to maintain.
type randomPolicy struct {
	keys map[string]struct{}
}

func newRandomPolicy() *randomPolicy {
	return &randomPolicy{keys: make(map[string]struct{})}
}

func (p *randomPolicy) Touch(key string) { p.Add(key) }

func (p *randomPolicy) Add(key string) { p.keys[key] = struct{}{} }

func (p *randomPolicy) Remove(key string) { delete(p.keys, key) }

func (p *randomPolicy) Candidates(limit int) []string {
	all := make([]string, 0, len(p.keys))
	for k := range p.keys {
		all = append(all, k)
	}
	rand.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

func (p *randomPolicy) Evicted(key string) { p.Remove(key) }

func (p *randomPolicy) Len() int { return len(p.keys) }

func (p *randomPolicy) Clear() { p.keys = make(map[string]struct{}) }
