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

// volatilePolicy wraps an underlying recency/frequency policy and
// restricts Candidates to keys that currently carry a TTL, matching
// Redis's volatile-lru/volatile-lfu semantics.
type volatilePolicy struct {
	inner      Policy
	isVolatile IsVolatileFunc
}

func newVolatile(inner Policy, isVolatile IsVolatileFunc) *volatilePolicy {
	return &volatilePolicy{inner: inner, isVolatile: isVolatile}
}

func (p *volatilePolicy) Touch(key string)   { p.inner.Touch(key) }
func (p *volatilePolicy) Add(key string)     { p.inner.Add(key) }
func (p *volatilePolicy) Remove(key string)  { p.inner.Remove(key) }
func (p *volatilePolicy) Evicted(key string) { p.inner.Evicted(key) }
func (p *volatilePolicy) Len() int           { return p.inner.Len() }
func (p *volatilePolicy) Clear()             { p.inner.Clear() }

func (p *volatilePolicy) Candidates(limit int) []string {
	// ask the inner policy for everything in rank order, then filter
	// down to volatile keys; the inner policy has no notion of TTL
	all := p.inner.Candidates(0)
	var out []string
	for _, key := range all {
		if p.isVolatile == nil || !p.isVolatile(key) {
			continue
		}
		out = append(out, key)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
