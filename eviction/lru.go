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

import "container/list"

// lruPolicy ranks keys oldest-touched-first using an intrusive
// doubly-linked list, the textbook LRU shape.
type lruPolicy struct {
	ll    *list.List
	index map[string]*list.Element
}

func newLRU() *lruPolicy {
	return &lruPolicy{ll: list.New(), index: make(map[string]*list.Element)}
}

func (p *lruPolicy) Touch(key string) {
	if el, ok := p.index[key]; ok {
		p.ll.MoveToBack(el)
		return
	}
	p.Add(key)
}

func (p *lruPolicy) Add(key string) {
	if el, ok := p.index[key]; ok {
		p.ll.MoveToBack(el)
		return
	}
	p.index[key] = p.ll.PushBack(key)
}

func (p *lruPolicy) Remove(key string) {
	if el, ok := p.index[key]; ok {
		p.ll.Remove(el)
		delete(p.index, key)
	}
}

func (p *lruPolicy) Candidates(limit int) []string {
	var out []string
	for el := p.ll.Front(); el != nil && (limit <= 0 || len(out) < limit); el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}

func (p *lruPolicy) Evicted(key string) { p.Remove(key) }

func (p *lruPolicy) Len() int { return p.ll.Len() }

func (p *lruPolicy) Clear() {
	p.ll = list.New()
	p.index = make(map[string]*list.Element)
}
