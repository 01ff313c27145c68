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

// LWWRegister is a last-writer-wins register: the value stamped with
// the greatest HLC wins a merge, ties broken lexicographically on
// node id.
type LWWRegister struct {
	Value []byte
	Clock HLC
}

// MergeLWW returns the register that should win between a and b. It is
// idempotent (MergeLWW(a, a) == a), commutative (MergeLWW(a, b) ==
// MergeLWW(b, a)), and associative, since it is a total order's max.
func MergeLWW(a, b LWWRegister) LWWRegister {
	if a.Clock.Less(b.Clock) {
		return b
	}
	return a
}
