package keyspace

import (
	"testing"
	"time"

	"github.com/hyperkv-project/hyperkv/crdt"
	"github.com/hyperkv-project/hyperkv/eviction"
	"github.com/hyperkv-project/hyperkv/storage"
)

func newTestKeyspace(t *testing.T) *Keyspace {
	t.Helper()
	return New(Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MaxMemory:       0, // eviction disabled
		MemoryThreshold: 0.9,
	})
}

func TestSetAndGet(t *testing.T) {
	k := newTestKeyspace(t)
	ok, err := k.Set("a", []byte("1"), SetOptions{})
	if err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	v, ok, err := k.Get("a")
	if err != nil || !ok || string(v) != "1" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestSetNX(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("a", []byte("1"), SetOptions{})
	ok, err := k.Set("a", []byte("2"), SetOptions{OnlyIfNX: true})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected NX to refuse overwrite of an existing key")
	}
	v, _, _ := k.Get("a")
	if string(v) != "1" {
		t.Fatalf("expected value unchanged, got %q", v)
	}
}

func TestSetXX(t *testing.T) {
	k := newTestKeyspace(t)
	ok, err := k.Set("missing", []byte("1"), SetOptions{OnlyIfXX: true})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected XX to refuse creating a new key")
	}
}

func TestSetWithTTLAndExpiry(t *testing.T) {
	now := int64(1000 * int64(time.Second))
	k := New(Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MemoryThreshold: 0.9,
		NowFunc:         func() int64 { return now },
	})
	k.Set("a", []byte("1"), SetOptions{TTL: time.Second})

	ttl, err := k.TTL("a")
	if err != nil || ttl != 1 {
		t.Fatalf("expected TTL 1s, got %d err=%v", ttl, err)
	}

	now += int64(2 * time.Second)
	_, ok, err := k.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected key to have expired")
	}
}

func TestDelAndExists(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("a", []byte("1"), SetOptions{})
	k.Set("b", []byte("2"), SetOptions{})

	n, err := k.Exists("a", "b", "c")
	if err != nil || n != 2 {
		t.Fatalf("Exists: n=%d err=%v", n, err)
	}

	deleted, err := k.Del("a", "c")
	if err != nil || deleted != 1 {
		t.Fatalf("Del: deleted=%d err=%v", deleted, err)
	}
	if n, _ := k.Exists("a"); n != 0 {
		t.Fatal("expected a to be gone")
	}
}

func TestExpireAndPersist(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("a", []byte("1"), SetOptions{})

	ok, err := k.Expire("a", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Expire: ok=%v err=%v", ok, err)
	}
	ttl, _ := k.TTL("a")
	if ttl <= 0 {
		t.Fatalf("expected positive TTL, got %d", ttl)
	}

	ok, err = k.Persist("a")
	if err != nil || !ok {
		t.Fatalf("Persist: ok=%v err=%v", ok, err)
	}
	ttl, _ = k.TTL("a")
	if ttl != -1 {
		t.Fatalf("expected -1 after Persist, got %d", ttl)
	}
}

func TestTTLOnMissingKey(t *testing.T) {
	k := newTestKeyspace(t)
	ttl, err := k.TTL("nope")
	if err != nil || ttl != -2 {
		t.Fatalf("expected -2, got %d err=%v", ttl, err)
	}
}

func TestKeysAndScan(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("user:1", []byte("a"), SetOptions{})
	k.Set("user:2", []byte("b"), SetOptions{})
	k.Set("order:1", []byte("c"), SetOptions{})

	matched, err := k.Keys("user:*")
	if err != nil {
		t.Fatal(err)
	}
	if len(matched) != 2 {
		t.Fatalf("expected 2 matches, got %d (%v)", len(matched), matched)
	}

	var all []string
	cursor := ""
	for {
		next, page, err := k.Scan(cursor, "", 1)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 keys total across scan pages, got %d", len(all))
	}
}

func TestFlushDB(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("a", []byte("1"), SetOptions{})
	if err := k.FlushDB(); err != nil {
		t.Fatal(err)
	}
	n, _ := k.Size()
	if n != 0 {
		t.Fatalf("expected empty keyspace after FLUSHDB, got %d keys", n)
	}
}

func TestCRDTSetMergesLWW(t *testing.T) {
	clock := crdt.NewClock("node-a", func() int64 { return 100 })
	k := New(Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MemoryThreshold: 0.9,
		Clock:           clock,
	})

	_, ok, err := k.CRDTSet("x", crdt.TypeLWW, []byte("v1"), SetOptions{})
	if err != nil || !ok {
		t.Fatalf("CRDTSet: ok=%v err=%v", ok, err)
	}

	merged, ok, err := k.CRDTSet("x", crdt.TypeLWW, []byte("v2"), SetOptions{})
	if err != nil || !ok {
		t.Fatalf("CRDTSet: ok=%v err=%v", ok, err)
	}
	if string(merged.LWW.Value) != "v2" {
		t.Fatalf("expected the later write to win, got %q", merged.LWW.Value)
	}

	got, ok, err := k.CRDTGet("x")
	if err != nil || !ok {
		t.Fatalf("CRDTGet: ok=%v err=%v", ok, err)
	}
	if string(got.LWW.Value) != "v2" {
		t.Fatalf("expected v2 to persist, got %q", got.LWW.Value)
	}
}

func TestCRDTSetWithoutClockErrors(t *testing.T) {
	k := newTestKeyspace(t)
	_, _, err := k.CRDTSet("x", crdt.TypeLWW, []byte("v1"), SetOptions{})
	if err == nil {
		t.Fatal("expected an error when no clock is configured")
	}
}

func TestCRDTGetOnPlainKeyIsWrongType(t *testing.T) {
	k := newTestKeyspace(t)
	k.Set("plain", []byte("not json crdt"), SetOptions{})
	_, _, err := k.CRDTGet("plain")
	if err == nil {
		t.Fatal("expected an error for a non-CRDT key")
	}
}

func TestSweepPopsDueKeysOnly(t *testing.T) {
	now := int64(1000 * int64(time.Second))
	k := New(Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MemoryThreshold: 0.9,
		NowFunc:         func() int64 { return now },
	})
	k.Set("due", []byte("1"), SetOptions{TTL: time.Second})
	k.Set("notyet", []byte("1"), SetOptions{TTL: time.Hour})
	k.Set("forever", []byte("1"), SetOptions{})

	now += int64(2 * time.Second)
	n := k.Sweep(0)
	if n != 1 {
		t.Fatalf("expected exactly 1 key swept, got %d", n)
	}
	if n, _ := k.Exists("due"); n != 0 {
		t.Fatal("expected the due key to be gone from the backend")
	}
	if n, _ := k.Exists("notyet", "forever"); n != 2 {
		t.Fatal("expected non-due keys to survive the sweep")
	}
}

func TestSweepRespectsBudget(t *testing.T) {
	now := int64(1000 * int64(time.Second))
	k := New(Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MemoryThreshold: 0.9,
		NowFunc:         func() int64 { return now },
	})
	for _, key := range []string{"a", "b", "c"} {
		k.Set(key, []byte("1"), SetOptions{TTL: time.Second})
	}
	now += int64(2 * time.Second)
	if n := k.Sweep(2); n != 2 {
		t.Fatalf("expected the sweep to stop at its budget of 2, got %d", n)
	}
	if n := k.Sweep(0); n != 1 {
		t.Fatalf("expected the remaining due key to be swept, got %d", n)
	}
}

func TestFlushDBResetsEvictionAccounting(t *testing.T) {
	k := New(Options{
		Backend:           storage.NewMemoryBackend(),
		EvictionPolicy:    eviction.LRU,
		MaxMemory:         10,
		MemoryThreshold:   0.9,
		EvictionBatchSize: 1,
	})
	k.Set("a", []byte("12345"), SetOptions{})
	if err := k.FlushDB(); err != nil {
		t.Fatal(err)
	}
	if k.evict.OverBudget() {
		t.Fatal("expected FlushDB to reset eviction accounting")
	}
	ok, err := k.Set("b", []byte("12345"), SetOptions{})
	if err != nil || !ok {
		t.Fatalf("expected a fresh write after FLUSHDB to succeed, ok=%v err=%v", ok, err)
	}
}

func TestSetFailsWithOOMWhenEvictionCannotMakeRoom(t *testing.T) {
	k := New(Options{
		Backend:           storage.NewMemoryBackend(),
		EvictionPolicy:    eviction.LRU,
		MaxMemory:         5,
		MemoryThreshold:   0.9,
		EvictionBatchSize: 1,
	})
	// nothing to evict, so a key bigger than the whole budget must fail
	_, err := k.Set("a", []byte("too-big-for-budget"), SetOptions{})
	if err != ErrOOM {
		t.Fatalf("expected ErrOOM, got %v", err)
	}
	if _, ok, _ := k.Get("a"); ok {
		t.Fatal("expected the rejected write to leave no trace")
	}
}

func TestCRDTProjectPlainGet(t *testing.T) {
	clock := crdt.NewClock("node-a", func() int64 { return 100 })
	k := New(Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MemoryThreshold: 0.9,
		Clock:           clock,
	})
	if _, ok, err := k.CRDTSet("x", crdt.TypeLWW, []byte("hello"), SetOptions{}); err != nil || !ok {
		t.Fatalf("CRDTSet: ok=%v err=%v", ok, err)
	}
	v, ok, err := k.CRDTGet("x")
	if err != nil || !ok {
		t.Fatalf("CRDTGet: ok=%v err=%v", ok, err)
	}
	projected, err := v.Project()
	if err != nil {
		t.Fatal(err)
	}
	if string(projected) != "hello" {
		t.Fatalf("expected primitive projection %q, got %q", "hello", projected)
	}
}

func TestEvictionUnderMemoryPressure(t *testing.T) {
	k := New(Options{
		Backend:           storage.NewMemoryBackend(),
		EvictionPolicy:    eviction.LRU,
		MaxMemory:         10,
		MemoryThreshold:   0.5,
		EvictionBatchSize: 1,
	})
	k.Set("a", []byte("12345"), SetOptions{})
	k.Set("b", []byte("12345"), SetOptions{})
	k.Set("c", []byte("12345"), SetOptions{}) // "b" and "c" each lift usage to 10 bytes, past the 5-byte target: "b" evicts "a", "c" evicts "b"

	if _, ok, _ := k.Get("a"); ok {
		t.Fatal("expected the least recently used key to have been evicted")
	}
	if _, ok, _ := k.Get("c"); !ok {
		t.Fatal("expected the most recently written key to survive")
	}
}
