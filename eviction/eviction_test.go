package eviction

import "testing"

func TestLRUOrder(t *testing.T) {
	p := newLRU()
	p.Add("a")
	p.Add("b")
	p.Add("c")
	p.Touch("a") // a is now most-recently used
	cand := p.Candidates(0)
	want := []string{"b", "c", "a"}
	for i, k := range want {
		if cand[i] != k {
			t.Fatalf("candidates = %v, want %v", cand, want)
		}
	}
}

func TestLFUOrder(t *testing.T) {
	p := newLFU()
	p.Add("a")
	p.Add("b")
	p.Touch("a")
	p.Touch("a")
	cand := p.Candidates(0)
	if cand[0] != "b" {
		t.Fatalf("expected least-frequently-used b first, got %v", cand)
	}
}

func TestVolatilePolicyFiltersNonTTLKeys(t *testing.T) {
	ttl := map[string]bool{"a": true, "b": false}
	p := newVolatile(newLRU(), func(key string) bool { return ttl[key] })
	p.Add("a")
	p.Add("b")
	cand := p.Candidates(0)
	if len(cand) != 1 || cand[0] != "a" {
		t.Fatalf("expected only volatile key a, got %v", cand)
	}
}

func TestManagerEvictsDownToThreshold(t *testing.T) {
	policy := newLRU()
	m := NewManager(policy, 100, 0.5, 2)

	sizes := map[string]int64{}
	for _, k := range []string{"a", "b", "c", "d"} {
		m.Add(k, 20)
		sizes[k] = 20
	}
	// currentMemory = 80, under 100 budget, not over yet
	m.Add("e", 30) // currentMemory = 110, now over budget
	sizes["e"] = 30

	deleted := map[string]bool{}
	evicted := m.MaybeEvict(func(key string) (int64, bool) {
		deleted[key] = true
		return sizes[key], true
	})

	if len(evicted) == 0 {
		t.Fatal("expected at least one key evicted")
	}
	if m.currentMemory > 50 {
		t.Fatalf("expected memory at or below target 50, got %d", m.currentMemory)
	}
	// LRU evicts oldest-added first
	if !deleted["a"] {
		t.Error("expected oldest key a to be evicted first")
	}
}

func TestManagerDisabledWhenNoBudget(t *testing.T) {
	m := NewManager(newLRU(), 0, 0.9, 16)
	m.Add("a", 1<<30)
	evicted := m.MaybeEvict(func(key string) (int64, bool) { return 0, true })
	if evicted != nil {
		t.Fatalf("expected no eviction with budget disabled, got %v", evicted)
	}
}

func TestManagerOverBudgetAndClear(t *testing.T) {
	m := NewManager(newLRU(), 10, 0.9, 16)
	m.Add("a", 20)
	if !m.OverBudget() {
		t.Fatal("expected OverBudget after adding past the budget")
	}
	m.Clear()
	if m.OverBudget() {
		t.Fatal("expected Clear to reset accounting")
	}
	if m.policy.Len() != 0 {
		t.Fatalf("expected Clear to reset the policy too, got %d tracked keys", m.policy.Len())
	}
}

func TestARCGhostListsAdaptPartitionSize(t *testing.T) {
	p := newARC()
	p.Add("a")
	p.Add("b")
	p.Evicted("a") // a moves onto the b1 ghost list

	if p.b1.Len() != 1 {
		t.Fatalf("expected a on the b1 ghost list, got len=%d", p.b1.Len())
	}
	before := p.p

	p.Add("a") // ghost hit on b1 should grow p and promote a straight to t2
	if p.p <= before {
		t.Fatalf("expected p to grow on a b1 ghost hit, got %d (was %d)", p.p, before)
	}
	if !p.inT2["a"] {
		t.Fatal("expected a ghost hit to promote the key directly into t2")
	}
	if p.b1.Len() != 0 {
		t.Fatal("expected the ghost hit to remove a from b1")
	}
}
