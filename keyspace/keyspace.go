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

// Package keyspace is the core of HyperKV: the primary key/value map,
// wired to TTL expiration, eviction, CRDT merge, the append log, and
// pub/sub keyspace notifications. Every exported operation here is
// the single-command-atomic vocabulary the connection dispatcher
// calls into.
package keyspace

import (
	"errors"
	"time"

	"github.com/hyperkv-project/hyperkv/aof"
	"github.com/hyperkv-project/hyperkv/crdt"
	"github.com/hyperkv-project/hyperkv/eviction"
	"github.com/hyperkv-project/hyperkv/pubsub"
	"github.com/hyperkv-project/hyperkv/storage"
	"github.com/hyperkv-project/hyperkv/ttlindex"
)

// ErrWrongType is returned by CRDTGet when the key holds a plain
// (non-CRDT) value, and by CRDTSet for an unknown CRDT type.
var ErrWrongType = errors.New("keyspace: WRONGTYPE")

// ErrOOM is returned by Set/CRDTSet when eviction could not free
// enough memory for a new key to fit under max_memory, per §4.6 and
// the OOM error taxonomy entry.
var ErrOOM = errors.New("OOM command not allowed when used memory > 'maxmemory'")

// Event names published as keyspace notifications, per §4.8.
const (
	EventSet     = "set"
	EventDel     = "del"
	EventExpired = "expired"
	EventEvicted = "evicted"
)

type op struct {
	fn   func()
	done chan struct{}
}

// Keyspace owns the primary map and every subsystem a write touches.
// All mutating and reading operations are funneled through a single
// goroutine (run), the same reentrant-safe, single-writer-owns-state
// contract storage.CacheManager gives its callers — callers never see
// partial updates and eviction/expiry callbacks never re-enter the
// write path from a second goroutine.
type Keyspace struct {
	backend storage.Backend
	ttl     *ttlindex.Index
	evict   *eviction.Manager
	clock   *crdt.Clock
	aofw    *aof.Writer
	broker  *pubsub.Broker

	notifications bool
	nowFunc       func() int64

	opChan chan op
}

// Options configures a new Keyspace.
type Options struct {
	Backend             storage.Backend
	EvictionPolicy      eviction.Name
	MaxMemory           int64
	MemoryThreshold     float64
	EvictionBatchSize   int
	Clock               *crdt.Clock
	AOF                 *aof.Writer // nil disables append-log writes
	Broker              *pubsub.Broker
	EnableNotifications bool
	NowFunc             func() int64 // unix nanos; defaults to time.Now().UnixNano
}

// New constructs a Keyspace and starts its single-writer goroutine.
func New(opts Options) *Keyspace {
	now := opts.NowFunc
	if now == nil {
		now = func() int64 { return time.Now().UnixNano() }
	}
	k := &Keyspace{
		backend:       opts.Backend,
		ttl:           ttlindex.New(),
		clock:         opts.Clock,
		aofw:          opts.AOF,
		broker:        opts.Broker,
		notifications: opts.EnableNotifications,
		nowFunc:       now,
		opChan:        make(chan op, 1024),
	}
	policy := eviction.New(opts.EvictionPolicy, k.isVolatile)
	k.evict = eviction.NewManager(policy, opts.MaxMemory, opts.MemoryThreshold, opts.EvictionBatchSize)
	go k.run()
	return k
}

func (k *Keyspace) run() {
	for o := range k.opChan {
		o.fn()
		close(o.done)
	}
}

func (k *Keyspace) do(fn func()) {
	done := make(chan struct{})
	k.opChan <- op{fn: fn, done: done}
	<-done
}

func (k *Keyspace) isVolatile(key string) bool {
	_, ok := k.ttl.Get(key)
	return ok
}

func (k *Keyspace) notify(event, key string) {
	if !k.notifications || k.broker == nil {
		return
	}
	k.broker.Publish("__keyspace__:"+key, []byte(event))
	k.broker.Publish("__keyevent__:"+event, []byte(key))
}

func (k *Keyspace) appendLog(r aof.Record) {
	if k.aofw == nil {
		return
	}
	k.aofw.Write(r) // durability failures surface via the caller's own health checks, not inline here
}

// expireIfDue evicts key if its TTL is due, under the caller's own
// lock (expected to already be inside k.do). Returns true if it was
// expired.
func (k *Keyspace) expireIfDue(key string) bool {
	deadline, ok := k.ttl.Get(key)
	if !ok || deadline > k.nowFunc() {
		return false
	}
	e, _, _ := k.backend.Get(key)
	k.backend.Delete(key)
	k.ttl.Remove(key)
	k.evict.Remove(key, int64(len(e.Value)))
	k.notify(EventExpired, key)
	return true
}

// Get returns key's value, or ok=false if absent or expired.
func (k *Keyspace) Get(key string) (value []byte, ok bool, err error) {
	k.do(func() {
		if k.expireIfDue(key) {
			return
		}
		var e storage.Entry
		e, ok, err = k.backend.Get(key)
		if err != nil || !ok {
			return
		}
		k.evict.Touch(key)
		value = e.Value
	})
	return value, ok, err
}

// SetOptions controls SET's atomic flags, per §4.8.
type SetOptions struct {
	TTL      time.Duration // 0 = no TTL
	OnlyIfNX bool
	OnlyIfXX bool
}

// Set stores value for key under opts. It returns ok=false when NX/XX
// preconditions were not met (SET returns nil to the client in that
// case, per Redis convention).
func (k *Keyspace) Set(key string, value []byte, opts SetOptions) (ok bool, err error) {
	k.do(func() {
		k.expireIfDue(key)
		_, exists, getErr := k.backend.Get(key)
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

		var expiresAt int64
		if opts.TTL > 0 {
			expiresAt = k.nowFunc() + opts.TTL.Nanoseconds()
		}
		if putErr := k.backend.Put(key, storage.Entry{Value: value, ExpiresAt: expiresAt}); putErr != nil {
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
			k.evict.Add(key, int64(len(value)))
		}
		k.evict.MaybeEvict(k.evictExcept(key))

		if !exists && k.evict.OverBudget() {
			// eviction ran and still couldn't make room for a brand
			// new key: refuse the write rather than leave the
			// keyspace over its memory budget.
			k.backend.Delete(key)
			k.ttl.Remove(key)
			k.evict.Remove(key, int64(len(value)))
			err = ErrOOM
			return
		}

		k.appendLog(aof.Record{Op: aof.OpSet, Key: key, Value: value, ExpiresAt: expiresAt})
		k.notify(EventSet, key)
		ok = true
	})
	return ok, err
}

// evictOne is the eviction.EvictFunc callback: it deletes key from
// the backend and TTL index directly, without going through Del (Del
// would re-enter k.do, which is already held by the caller of
// MaybeEvict).
func (k *Keyspace) evictOne(key string) (int64, bool) {
	e, ok, _ := k.backend.Get(key)
	if !ok {
		return 0, false
	}
	k.backend.Delete(key)
	k.ttl.Remove(key)
	k.notify(EventEvicted, key)
	return int64(len(e.Value)), true
}

// evictExcept wraps evictOne to refuse evicting except, the key a
// Set/CRDTSet call currently has in flight: the policy tracks except
// from the moment it's Add-ed, so without this guard a write into an
// otherwise-empty/over-budget keyspace could "succeed" by evicting
// itself the instant it lands.
func (k *Keyspace) evictExcept(except string) eviction.EvictFunc {
	return func(candidate string) (int64, bool) {
		if candidate == except {
			return 0, false
		}
		return k.evictOne(candidate)
	}
}

// Del deletes the given keys, returning the count actually removed.
func (k *Keyspace) Del(keys ...string) (count int, err error) {
	k.do(func() {
		for _, key := range keys {
			if k.expireIfDue(key) {
				continue
			}
			e, ok, getErr := k.backend.Get(key)
			if getErr != nil {
				err = getErr
				return
			}
			if !ok {
				continue
			}
			if _, delErr := k.backend.Delete(key); delErr != nil {
				err = delErr
				return
			}
			k.ttl.Remove(key)
			k.evict.Remove(key, int64(len(e.Value)))
			k.appendLog(aof.Record{Op: aof.OpDel, Key: key})
			k.notify(EventDel, key)
			count++
		}
	})
	return count, err
}

// Exists counts how many of the given keys are present.
func (k *Keyspace) Exists(keys ...string) (count int, err error) {
	k.do(func() {
		for _, key := range keys {
			if k.expireIfDue(key) {
				continue
			}
			exists, existsErr := k.backend.Exists(key)
			if existsErr != nil {
				err = existsErr
				return
			}
			if exists {
				count++
			}
		}
	})
	return count, err
}

// Expire sets key's TTL to ttl from now. Returns ok=false if key is
// absent.
func (k *Keyspace) Expire(key string, ttl time.Duration) (ok bool, err error) {
	k.do(func() {
		if k.expireIfDue(key) {
			return
		}
		exists, existsErr := k.backend.Exists(key)
		if existsErr != nil {
			err = existsErr
			return
		}
		if !exists {
			return
		}
		expiresAt := k.nowFunc() + ttl.Nanoseconds()
		k.ttl.Set(key, expiresAt)
		k.appendLog(aof.Record{Op: aof.OpExpire, Key: key, ExpiresAt: expiresAt})
		ok = true
	})
	return ok, err
}

// TTL returns key's remaining TTL in seconds, -1 if no TTL is set, or
// -2 if the key does not exist.
func (k *Keyspace) TTL(key string) (seconds int64, err error) {
	k.do(func() {
		if k.expireIfDue(key) {
			seconds = -2
			return
		}
		exists, existsErr := k.backend.Exists(key)
		if existsErr != nil {
			err = existsErr
			return
		}
		if !exists {
			seconds = -2
			return
		}
		deadline, ok := k.ttl.Get(key)
		if !ok {
			seconds = -1
			return
		}
		remaining := deadline - k.nowFunc()
		if remaining < 0 {
			remaining = 0
		}
		seconds = remaining / int64(time.Second)
	})
	return seconds, err
}

// Persist removes key's TTL. Returns ok=true if a TTL was removed.
func (k *Keyspace) Persist(key string) (ok bool, err error) {
	k.do(func() {
		if k.expireIfDue(key) {
			return
		}
		if _, has := k.ttl.Get(key); !has {
			return
		}
		k.ttl.Remove(key)
		k.appendLog(aof.Record{Op: aof.OpPersist, Key: key})
		ok = true
	})
	return ok, err
}

// Keys returns every live key matching the glob pattern. It performs
// a full scan and is discouraged for production use, per §4.8.
func (k *Keyspace) Keys(pattern string) (keys []string, err error) {
	k.do(func() {
		all, _, scanErr := k.backend.ScanFrom("", 0)
		if scanErr != nil {
			err = scanErr
			return
		}
		for _, key := range all {
			if k.expireIfDue(key) {
				continue
			}
			if matched, _ := matchGlob(pattern, key); matched {
				keys = append(keys, key)
			}
		}
	})
	return keys, err
}

// Scan performs one cursor-based scan page, honoring an optional
// MATCH glob and COUNT hint.
func (k *Keyspace) Scan(cursor string, match string, count int) (next string, keys []string, err error) {
	if count <= 0 {
		count = 10
	}
	k.do(func() {
		page, n, scanErr := k.backend.ScanFrom(cursor, count)
		if scanErr != nil {
			err = scanErr
			return
		}
		next = n
		for _, key := range page {
			if k.expireIfDue(key) {
				continue
			}
			if match != "" {
				if matched, _ := matchGlob(match, key); !matched {
					continue
				}
			}
			keys = append(keys, key)
		}
	})
	return next, keys, err
}

// FlushDB clears the entire keyspace.
func (k *Keyspace) FlushDB() error {
	var err error
	k.do(func() {
		err = k.backend.Clear()
		k.ttl = ttlindex.New()
		k.evict.Clear()
		k.appendLog(aof.Record{Op: aof.OpClear})
	})
	return err
}

// Sweep performs active expiration: it pops up to budget keys whose
// TTL deadline has elapsed from the index, deletes them from the
// backend and eviction accounting, and publishes EventExpired for
// each. It is the wire for the background sweeper task §4.5
// describes (`sweep(now, batch_size)` every `check_interval`).
// A budget <= 0 sweeps everything due.
func (k *Keyspace) Sweep(budget int) int {
	var n int
	k.do(func() {
		due := k.ttl.Sweep(k.nowFunc(), budget)
		for _, key := range due {
			e, ok, _ := k.backend.Get(key)
			if !ok {
				continue
			}
			k.backend.Delete(key)
			k.evict.Remove(key, int64(len(e.Value)))
			k.notify(EventExpired, key)
			n++
		}
	})
	return n
}

func matchGlob(pattern, s string) (bool, error) {
	re, err := compileKeyspaceGlob(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// Size reports the current key count, for INFO.
func (k *Keyspace) Size() (int, error) {
	var n int
	var err error
	k.do(func() { n, err = k.backend.Size() })
	return n, err
}

