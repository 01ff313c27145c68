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

package keyspace

import (
	"encoding/json"
	"fmt"

	"github.com/hyperkv-project/hyperkv/aof"
	"github.com/hyperkv-project/hyperkv/crdt"
	"github.com/hyperkv-project/hyperkv/storage"
)

// crdtEnvelope is the on-disk/backend encoding for a CRDT-typed key:
// the value stored by storage.Backend is this struct, JSON-encoded,
// so a plain GET against a CRDT key can still be told apart from an
// ordinary byte string by callers that care (CRDTGet does).
type crdtEnvelope struct {
	Value crdt.Value `json:"value"`
}

// buildCRDTValue constructs the CRDT value a fresh `SET key payload
// CRDT t` installs, stamping it with the keyspace's HLC clock so
// concurrent writers across nodes order consistently on merge.
func (k *Keyspace) buildCRDTValue(t crdt.Type, payload []byte) (crdt.Value, error) {
	if k.clock == nil {
		return crdt.Value{}, fmt.Errorf("crdt: no node_id/clock configured on this server")
	}
	switch t {
	case crdt.TypeLWW:
		return crdt.Value{Type: crdt.TypeLWW, LWW: &crdt.LWWRegister{
			Value: payload,
			Clock: k.clock.Tick(),
		}}, nil
	case crdt.TypeORSet:
		var s crdt.ORSet
		s.Add(string(payload), k.clock.Tick(), k.clock.NodeID())
		return crdt.Value{Type: crdt.TypeORSet, ORSet: &s}, nil
	default:
		return crdt.Value{}, fmt.Errorf("%w: unknown CRDT type %q", ErrWrongType, t)
	}
}

// CRDTSet installs payload as a CRDT value of type t on key, merging
// with any existing CRDT value already stored there, and stamping the
// new value with the keyspace's HLC clock. It is the wire path for
// `SET key payload CRDT <type>`. ok is false when NX/XX precludes the
// write, matching Set's contract.
func (k *Keyspace) CRDTSet(key string, t crdt.Type, payload []byte, opts SetOptions) (result crdt.Value, ok bool, err error) {
	k.do(func() {
		k.expireIfDue(key)

		e, exists, getErr := k.backend.Get(key)
		if getErr != nil {
			err = getErr
			return
		}
		if opts.OnlyIfNX && exists {
			return
		}
		if opts.OnlyIfXX && !exists {
			return
		}

		newValue, buildErr := k.buildCRDTValue(t, payload)
		if buildErr != nil {
			err = buildErr
			return
		}
		merged := newValue
		if exists {
			var env crdtEnvelope
			if unmarshalErr := json.Unmarshal(e.Value, &env); unmarshalErr == nil {
				merged, err = crdt.Merge(env.Value, newValue)
				if err != nil {
					return
				}
			}
		}

		raw, marshalErr := json.Marshal(crdtEnvelope{Value: merged})
		if marshalErr != nil {
			err = marshalErr
			return
		}

		expiresAt := e.ExpiresAt
		if opts.TTL > 0 {
			expiresAt = k.nowFunc() + opts.TTL.Nanoseconds()
		}
		if putErr := k.backend.Put(key, storage.Entry{Value: raw, ExpiresAt: expiresAt}); putErr != nil {
			err = putErr
			return
		}
		if expiresAt > 0 {
			k.ttl.Set(key, expiresAt)
		} else {
			k.ttl.Remove(key)
		}
		if exists {
			k.evict.Touch(key)
		} else {
			k.evict.Add(key, int64(len(raw)))
		}
		k.evict.MaybeEvict(k.evictExcept(key))

		if !exists && k.evict.OverBudget() {
			k.backend.Delete(key)
			k.ttl.Remove(key)
			k.evict.Remove(key, int64(len(raw)))
			err = ErrOOM
			return
		}

		mergeRaw, _ := json.Marshal(merged)
		k.appendLog(aof.Record{Op: aof.OpCRDTMerge, Key: key, Merge: mergeRaw})
		k.notify(EventSet, key)
		result = merged
		ok = true
	})
	return result, ok, err
}

// EncodeCRDTMerge takes the JSON-encoded crdt.Value carried by an
// aof.Record's Merge field (an OpCRDTMerge entry) and wraps it in the
// same crdtEnvelope shape the live CRDTSet path stores, so AOF replay
// writes backend entries a later CRDTGet can read back.
func EncodeCRDTMerge(merge []byte) ([]byte, error) {
	var v crdt.Value
	if err := json.Unmarshal(merge, &v); err != nil {
		return nil, err
	}
	return json.Marshal(crdtEnvelope{Value: v})
}

// CRDTGet returns key's current CRDT value. ok=false if absent,
// expired, or not CRDT-typed (ErrWrongType in that last case).
func (k *Keyspace) CRDTGet(key string) (value crdt.Value, ok bool, err error) {
	k.do(func() {
		if k.expireIfDue(key) {
			return
		}
		e, exists, getErr := k.backend.Get(key)
		if getErr != nil {
			err = getErr
			return
		}
		if !exists {
			return
		}
		var env crdtEnvelope
		if unmarshalErr := json.Unmarshal(e.Value, &env); unmarshalErr != nil {
			err = fmt.Errorf("%w: %s is not a CRDT value", ErrWrongType, key)
			return
		}
		k.evict.Touch(key)
		value = env.Value
		ok = true
	})
	return value, ok, err
}
