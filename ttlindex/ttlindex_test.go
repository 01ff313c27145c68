package ttlindex

import "testing"

func TestSetGetRemove(t *testing.T) {
	idx := New()
	idx.Set("a", 100)
	d, ok := idx.Get("a")
	if !ok || d != 100 {
		t.Fatalf("Get(a) = %d, %v", d, ok)
	}
	idx.Remove("a")
	if _, ok := idx.Get("a"); ok {
		t.Fatal("expected a removed")
	}
	idx.Remove("does-not-exist") // must not panic
}

func TestSetIsIdempotent(t *testing.T) {
	idx := New()
	idx.Set("a", 100)
	idx.Set("a", 200)
	if idx.Len() != 1 {
		t.Fatalf("expected exactly one entry, got %d", idx.Len())
	}
	d, _ := idx.Get("a")
	if d != 200 {
		t.Fatalf("expected updated deadline 200, got %d", d)
	}
}

func TestSweepOrderAndBudget(t *testing.T) {
	idx := New()
	idx.Set("late", 300)
	idx.Set("early", 100)
	idx.Set("mid", 200)
	idx.Set("future", 1000)

	due := idx.Sweep(250, 0)
	want := []string{"early", "mid"}
	if len(due) != len(want) {
		t.Fatalf("got %v, want %v", due, want)
	}
	for i, k := range want {
		if due[i] != k {
			t.Errorf("due[%d] = %s, want %s", i, due[i], k)
		}
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 remaining entries, got %d", idx.Len())
	}
}

func TestSweepBudget(t *testing.T) {
	idx := New()
	idx.Set("a", 1)
	idx.Set("b", 2)
	idx.Set("c", 3)
	due := idx.Sweep(100, 2)
	if len(due) != 2 {
		t.Fatalf("expected budget-limited sweep of 2, got %d", len(due))
	}
}
