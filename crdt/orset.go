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

package crdt

// AddTag identifies one add operation: the element added, tagged with
// the HLC reading and node id that produced it, so a later remove can
// cite exactly the add it observed.
type AddTag struct {
	Element string
	Clock   HLC
	NodeID  string
}

// Tombstone cites the specific AddTag it removes; it suppresses that
// tag only, leaving any concurrent add of the same element alive.
type Tombstone struct {
	Element string
	Clock   HLC
	NodeID  string
}

func (t Tombstone) cites(a AddTag) bool {
	return t.Element == a.Element && t.Clock == a.Clock && t.NodeID == a.NodeID
}

// ORSet is an observed-remove set: adds are tagged, removes cite the
// tag they observed, and concurrent add/remove of the same element
// both survive unless the remove specifically cited that add.
type ORSet struct {
	Adds       []AddTag
	Tombstones []Tombstone
}

// Add appends a new tagged add. Callers are expected to dedupe by
// (Element, Clock, NodeID) at the HLC layer; Add itself performs no
// deduplication. MergeORSet skips any tag from its second argument
// that the result already holds, so re-delivering the same merge
// record leaves the set unchanged.
func (s *ORSet) Add(element string, clock HLC, nodeID string) {
	s.Adds = append(s.Adds, AddTag{Element: element, Clock: clock, NodeID: nodeID})
}

// Remove tombstones every add tag currently observed for element —
// the caller-visible Members() set at the time of the call. It does
// not retroactively suppress adds delivered later by a concurrent
// writer, per §4.7: a remove cites the specific add tags it observed,
// nothing more.
func (s *ORSet) Remove(element string) {
	for _, a := range s.Adds {
		if a.Element != element || s.tombstoned(a) {
			continue
		}
		s.Tombstones = append(s.Tombstones, Tombstone{Element: a.Element, Clock: a.Clock, NodeID: a.NodeID})
	}
}

func (s *ORSet) tombstoned(a AddTag) bool {
	for _, t := range s.Tombstones {
		if t.cites(a) {
			return true
		}
	}
	return false
}

// Members returns the elements currently present: those with at
// least one add tag not suppressed by a tombstone.
func (s *ORSet) Members() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range s.Adds {
		if s.tombstoned(a) {
			continue
		}
		if seen[a.Element] {
			continue
		}
		seen[a.Element] = true
		out = append(out, a.Element)
	}
	return out
}

// MergeORSet unions both sets' adds and tombstones, the OR-set merge
// rule from §4.7. It is idempotent, commutative, and associative
// because set union is.
func MergeORSet(a, b ORSet) ORSet {
	result := ORSet{}
	result.Adds = append(result.Adds, a.Adds...)
	for _, tag := range b.Adds {
		if !containsAdd(result.Adds, tag) {
			result.Adds = append(result.Adds, tag)
		}
	}
	result.Tombstones = append(result.Tombstones, a.Tombstones...)
	for _, t := range b.Tombstones {
		if !containsTombstone(result.Tombstones, t) {
			result.Tombstones = append(result.Tombstones, t)
		}
	}
	return result
}

func containsAdd(tags []AddTag, tag AddTag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

func containsTombstone(tombstones []Tombstone, t Tombstone) bool {
	for _, x := range tombstones {
		if x == t {
			return true
		}
	}
	return false
}
