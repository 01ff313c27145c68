package config

import "testing"

func TestParseFlagsDefaults(t *testing.T) {
	c, err := ParseFlags(nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if c.Port != 6379 {
		t.Errorf("expected default port 6379, got %d", c.Port)
	}
	if c.Backend != BackendMemory {
		t.Errorf("expected default backend memory, got %s", c.Backend)
	}
	if c.MaxMemory != 0 {
		t.Errorf("expected default max memory 0, got %d", c.MaxMemory)
	}
}

func TestParseFlagsMaxMemory(t *testing.T) {
	c, err := ParseFlags([]string{"-max-memory", "1GB"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	const want = 1 << 30
	if c.MaxMemory != want {
		t.Errorf("expected %d bytes, got %d", want, c.MaxMemory)
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := Default()
	if err := c.Set("max_memory", "512MB"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok := c.Get("max_memory")
	if !ok {
		t.Fatal("Get: not found")
	}
	if v != "536870912" {
		t.Errorf("expected 536870912, got %s", v)
	}
}

func TestSetUnknownParameter(t *testing.T) {
	c := Default()
	if err := c.Set("not_a_real_param", "x"); err == nil {
		t.Error("expected error for unknown parameter")
	}
}
