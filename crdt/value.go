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

import (
	"encoding/json"
	"fmt"
)

// Type identifies which CRDT merge rule a tagged value uses.
type Type string

const (
	TypeLWW   Type = "lww"
	TypeORSet Type = "orset"
)

// Value is a tagged union over the CRDT-typed values a key can hold.
// Exactly one of LWW/ORSet is populated, matching Type.
type Value struct {
	Type  Type
	LWW   *LWWRegister
	ORSet *ORSet
}

// Merge dispatches to the type-specific merge rule. a and b must
// share the same Type; merging across types is a programming error in
// the caller, since a key's CRDT type is fixed at creation.
func Merge(a, b Value) (Value, error) {
	if a.Type != b.Type {
		return Value{}, fmt.Errorf("crdt: cannot merge %s with %s", a.Type, b.Type)
	}
	switch a.Type {
	case TypeLWW:
		merged := MergeLWW(*a.LWW, *b.LWW)
		return Value{Type: TypeLWW, LWW: &merged}, nil
	case TypeORSet:
		merged := MergeORSet(*a.ORSet, *b.ORSet)
		return Value{Type: TypeORSet, ORSet: &merged}, nil
	default:
		return Value{}, fmt.Errorf("crdt: unknown value type %s", a.Type)
	}
}

// Project returns v's primitive byte projection, the policy a plain
// GET against a CRDT-typed key uses: an LWW register projects its
// current Value; an OR-Set projects its current Members as a JSON
// array.
func (v Value) Project() ([]byte, error) {
	switch v.Type {
	case TypeLWW:
		return v.LWW.Value, nil
	case TypeORSet:
		return json.Marshal(v.ORSet.Members())
	default:
		return nil, fmt.Errorf("crdt: unknown value type %s", v.Type)
	}
}
