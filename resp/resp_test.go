package resp

import (
	"reflect"
	"testing"
)

func TestDecodeSimpleFrames(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("+OK\r\n-ERR bad\r\n:42\r\n$5\r\nhello\r\n$-1\r\n*-1\r\n"))

	want := []Frame{
		{Kind: SimpleString, Str: "OK"},
		{Kind: Error, Str: "ERR bad"},
		{Kind: Integer, Int: 42},
		{Kind: BulkString, Bulk: []byte("hello"), BulkSet: true},
		{Kind: BulkString},
		{Kind: Array, ArrayNull: true},
	}

	for i, w := range want {
		got, ok, err := d.Next()
		if err != nil {
			t.Fatalf("frame %d: unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("frame %d: expected a complete frame", i)
		}
		if !reflect.DeepEqual(got, w) {
			t.Errorf("frame %d: got %+v, want %+v", i, got, w)
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("expected buffer drained, got %d bytes left", d.Buffered())
	}
}

func TestDecodeCommandArray(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))

	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	cmd, ok := f.Command()
	if !ok {
		t.Fatal("expected Command() to succeed")
	}
	want := []string{"SET", "foo", "bar"}
	if !reflect.DeepEqual(cmd, want) {
		t.Errorf("got %v, want %v", cmd, want)
	}
}

func TestDecodeNeedsMoreData(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("*2\r\n$3\r\nfoo\r\n"))

	_, ok, err := d.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected incomplete array to report not-ok")
	}

	d.Feed([]byte("$3\r\nbar\r\n"))
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if len(f.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(f.Items))
	}
}

func TestDecodeOversizedBulkString(t *testing.T) {
	d := NewDecoder()
	d.MaxBulkLen = 4
	d.Feed([]byte("$10\r\n0123456789\r\n"))

	_, _, err := d.Next()
	if err == nil {
		t.Fatal("expected a ProtocolError for an oversized bulk string")
	}
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("expected *ProtocolError, got %T", err)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("!nope\r\n"))
	_, _, err := d.Next()
	if err == nil {
		t.Fatal("expected a ProtocolError for an unknown frame type")
	}
}

func TestResyncAfterProtocolError(t *testing.T) {
	d := NewDecoder()
	d.Feed([]byte("!garbage\r\n+OK\r\n"))
	_, _, err := d.Next()
	if err == nil {
		t.Fatal("expected an error")
	}
	d.Resync()
	f, ok, err := d.Next()
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if f.Kind != SimpleString || f.Str != "OK" {
		t.Errorf("unexpected frame after resync: %+v", f)
	}
}
