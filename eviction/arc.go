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

// arcPolicy is an Adaptive Replacement Cache: two LRU lists for
// recently-seen-once (t1) and seen-more-than-once (t2) keys, backed by
// two ghost lists (b1, b2) of recently evicted keys that adapt the
// target size p of t1 versus t2.
type arcPolicy struct {
	t1, t2, b1, b2 *list.List
	index          map[string]*list.Element
	inT1, inT2     map[string]bool
	p              int // target size of t1; grows/shrinks on ghost hits
	c              int // total cache capacity estimate, grows as keys are seen
}

func newARC() *arcPolicy {
	return &arcPolicy{
		t1:    list.New(),
		t2:    list.New(),
		b1:    list.New(),
		b2:    list.New(),
		index: make(map[string]*list.Element),
		inT1:  make(map[string]bool),
		inT2:  make(map[string]bool),
	}
}

func (p *arcPolicy) Touch(key string) {
	p.Add(key)
}

func (p *arcPolicy) Add(key string) {
	if p.c < 1<<30 {
		p.c++
	}

	if el, ok := p.index[key]; ok && p.inT1[key] {
		p.t1.Remove(el)
		delete(p.inT1, key)
		p.index[key] = p.t2.PushBack(key)
		p.inT2[key] = true
		return
	}
	if el, ok := p.index[key]; ok && p.inT2[key] {
		p.t2.MoveToBack(el)
		return
	}

	if p.ghostRemove(p.b1, key) {
		p.p = min(p.c, p.p+max(1, p.b2.Len()/max(1, p.b1.Len())))
		p.index[key] = p.t2.PushBack(key)
		p.inT2[key] = true
		return
	}
	if p.ghostRemove(p.b2, key) {
		p.p = max(0, p.p-max(1, p.b1.Len()/max(1, p.b2.Len())))
		p.index[key] = p.t2.PushBack(key)
		p.inT2[key] = true
		return
	}

	p.index[key] = p.t1.PushBack(key)
	p.inT1[key] = true
}

func (p *arcPolicy) ghostRemove(l *list.List, key string) bool {
	for el := l.Front(); el != nil; el = el.Next() {
		if el.Value.(string) == key {
			l.Remove(el)
			return true
		}
	}
	return false
}

// Remove forgets key outright, without recording it on either ghost
// list: used for explicit DEL/expiry, where the key is truly gone
// rather than evicted under memory pressure.
func (p *arcPolicy) Remove(key string) {
	if el, ok := p.index[key]; ok {
		if p.inT1[key] {
			p.t1.Remove(el)
		} else if p.inT2[key] {
			p.t2.Remove(el)
		}
		delete(p.index, key)
		delete(p.inT1, key)
		delete(p.inT2, key)
	}
	p.ghostRemove(p.b1, key)
	p.ghostRemove(p.b2, key)
}

// Evicted forgets key because Candidates chose it as a victim, and
// pushes it onto the ghost list matching the tier it was evicted
// from (b1 for t1, b2 for t2). A later Add that hits this ghost
// entry is what tunes p, ARC's adaptive t1/t2 partition size.
func (p *arcPolicy) Evicted(key string) {
	el, ok := p.index[key]
	if !ok {
		p.Remove(key)
		return
	}
	delete(p.index, key)
	if p.inT1[key] {
		p.t1.Remove(el)
		delete(p.inT1, key)
		p.pushGhost(p.b1, key)
	} else if p.inT2[key] {
		p.t2.Remove(el)
		delete(p.inT2, key)
		p.pushGhost(p.b2, key)
	}
}

// pushGhost records key as recently evicted, trimming the ghost list
// back to the cache's capacity estimate so ghosts don't grow without
// bound.
func (p *arcPolicy) pushGhost(l *list.List, key string) {
	l.PushBack(key)
	for l.Len() > max(1, p.c) {
		l.Remove(l.Front())
	}
}

// Candidates applies ARC's replacement rule: while t1 (the
// single-access list) holds more keys than its target size p, t1's
// front is ranked first, otherwise t2's front is; the other list
// follows.
func (p *arcPolicy) Candidates(limit int) []string {
	first, second := p.t1, p.t2
	if p.t1.Len() <= p.p {
		first, second = p.t2, p.t1
	}
	var out []string
	for el := first.Front(); el != nil && (limit <= 0 || len(out) < limit); el = el.Next() {
		out = append(out, el.Value.(string))
	}
	for el := second.Front(); el != nil && (limit <= 0 || len(out) < limit); el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}

func (p *arcPolicy) Len() int { return p.t1.Len() + p.t2.Len() }

func (p *arcPolicy) Clear() {
	p.t1, p.t2, p.b1, p.b2 = list.New(), list.New(), list.New(), list.New()
	p.index = make(map[string]*list.Element)
	p.inT1 = make(map[string]bool)
	p.inT2 = make(map[string]bool)
	p.p = 0
	p.c = 0
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
