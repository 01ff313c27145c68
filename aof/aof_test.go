package aof

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hyperkv.aof")

	w, err := Open(path, Always)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	records := []Record{
		{Op: OpSet, Key: "a", Value: []byte("1")},
		{Op: OpSet, Key: "b", Value: []byte("2")},
		{Op: OpDel, Key: "a"},
	}
	for _, r := range records {
		if err := w.Write(r); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var replayed []Record
	err = Replay(path, func(r Record) error {
		replayed = append(replayed, r)
		return nil
	}, func(line string, err error) {
		t.Fatalf("unexpected skip on line %q: %v", line, err)
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != len(records) {
		t.Fatalf("got %d records, want %d", len(replayed), len(records))
	}
	for i, r := range replayed {
		if r.Op != records[i].Op || r.Key != records[i].Key {
			t.Errorf("record %d = %+v, want %+v", i, r, records[i])
		}
	}
}

func TestReplayMissingFileIsNotAnError(t *testing.T) {
	err := Replay(filepath.Join(t.TempDir(), "absent.aof"), func(Record) error { return nil }, nil)
	if err != nil {
		t.Fatalf("expected no error for a missing log, got %v", err)
	}
}

func TestReplaySkipsMalformedTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hyperkv.aof")
	content := "1|{\"type\":\"SET\",\"key\":\"a\",\"value\":\"MQ==\"}\nnot-a-valid-line\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var applied int
	var skipped int
	err := Replay(path, func(Record) error {
		applied++
		return nil
	}, func(line string, err error) {
		skipped++
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if applied != 1 || skipped != 1 {
		t.Fatalf("applied=%d skipped=%d, want 1 and 1", applied, skipped)
	}
}

func TestRewriteAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hyperkv.aof")

	w, err := Open(path, No)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	w.Write(Record{Op: OpSet, Key: "stale", Value: []byte("x")})
	w.Write(Record{Op: OpDel, Key: "stale"})

	err = w.Rewrite(func(write func(Record) error) error {
		return write(Record{Op: OpSet, Key: "fresh", Value: []byte("y")})
	})
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var replayed []Record
	err = Replay(path, func(r Record) error {
		replayed = append(replayed, r)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 || replayed[0].Key != "fresh" {
		t.Fatalf("expected rewritten log to contain only 'fresh', got %+v", replayed)
	}
}
