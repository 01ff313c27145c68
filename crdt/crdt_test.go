package crdt

import (
	"reflect"
	"sort"
	"testing"
)

func TestClockTickMonotonic(t *testing.T) {
	wall := int64(1000)
	c := NewClock("node-a", func() int64 { return wall })
	first := c.Tick()
	wall = 999 // wall clock regressed; logical must still advance
	second := c.Tick()
	if !first.Less(second) {
		t.Fatalf("expected %v < %v", first, second)
	}
}

func TestClockReceiveAdoptsGreater(t *testing.T) {
	c := NewClock("node-a", func() int64 { return 0 })
	c.Tick() // logical = 1
	remote := HLC{Logical: 100, WallTime: 0, NodeID: "node-b"}
	got := c.Receive(remote)
	if got.Logical <= 100 {
		t.Fatalf("expected logical > remote's 100, got %d", got.Logical)
	}
}

func TestLWWMergePicksGreaterClock(t *testing.T) {
	a := LWWRegister{Value: []byte("a"), Clock: HLC{Logical: 1, NodeID: "n1"}}
	b := LWWRegister{Value: []byte("b"), Clock: HLC{Logical: 2, NodeID: "n1"}}
	got := MergeLWW(a, b)
	if string(got.Value) != "b" {
		t.Fatalf("expected b to win, got %s", got.Value)
	}
	// commutative
	got2 := MergeLWW(b, a)
	if !reflect.DeepEqual(got, got2) {
		t.Fatal("expected merge to be commutative")
	}
}

func TestLWWMergeTiebreakOnNodeID(t *testing.T) {
	a := LWWRegister{Value: []byte("a"), Clock: HLC{Logical: 1, WallTime: 1, NodeID: "n1"}}
	b := LWWRegister{Value: []byte("b"), Clock: HLC{Logical: 1, WallTime: 1, NodeID: "n2"}}
	got := MergeLWW(a, b)
	if string(got.Value) != "b" {
		t.Fatalf("expected lexicographically greater node id n2 to win, got %s", got.Value)
	}
}

func TestLWWMergeIdempotent(t *testing.T) {
	a := LWWRegister{Value: []byte("a"), Clock: HLC{Logical: 1, NodeID: "n1"}}
	if got := MergeLWW(a, a); !reflect.DeepEqual(got, a) {
		t.Fatalf("expected merge with self to be a no-op, got %+v", got)
	}
}

func TestORSetConcurrentAddAddSurvives(t *testing.T) {
	var a, b ORSet
	a.Add("x", HLC{Logical: 1, NodeID: "n1"}, "n1")
	b.Add("x", HLC{Logical: 1, NodeID: "n2"}, "n2")
	merged := MergeORSet(a, b)
	members := merged.Members()
	if len(members) != 1 || members[0] != "x" {
		t.Fatalf("expected x present once, got %v", members)
	}
	if len(merged.Adds) != 2 {
		t.Fatalf("expected both concurrent adds retained, got %d", len(merged.Adds))
	}
}

func TestORSetRemoveOnlyCitesObservedAdds(t *testing.T) {
	var a ORSet
	a.Add("x", HLC{Logical: 1, NodeID: "n1"}, "n1")
	a.Remove("x") // observes and tombstones the one add so far

	var b ORSet
	b.Add("x", HLC{Logical: 2, NodeID: "n2"}, "n2") // concurrent add, unseen by a's remove

	merged := MergeORSet(a, b)
	members := merged.Members()
	if len(members) != 1 || members[0] != "x" {
		t.Fatalf("expected x to survive via the concurrent add, got %v", members)
	}
}

func TestORSetMergeIdempotentCommutativeAssociative(t *testing.T) {
	var a, b, c ORSet
	a.Add("x", HLC{Logical: 1, NodeID: "n1"}, "n1")
	b.Add("y", HLC{Logical: 2, NodeID: "n2"}, "n2")
	c.Add("z", HLC{Logical: 3, NodeID: "n3"}, "n3")

	ab := MergeORSet(a, b)
	ba := MergeORSet(b, a)
	if !sameMembers(ab.Members(), ba.Members()) {
		t.Fatal("expected merge to be commutative")
	}

	left := MergeORSet(MergeORSet(a, b), c)
	right := MergeORSet(a, MergeORSet(b, c))
	if !sameMembers(left.Members(), right.Members()) {
		t.Fatal("expected merge to be associative")
	}

	self := MergeORSet(a, a)
	if !sameMembers(self.Members(), a.Members()) {
		t.Fatal("expected merge with self to be idempotent")
	}
}

func sameMembers(a, b []string) bool {
	sort.Strings(a)
	sort.Strings(b)
	return reflect.DeepEqual(a, b)
}
