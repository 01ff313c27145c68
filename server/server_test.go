package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/hyperkv-project/hyperkv/config"
	"github.com/hyperkv-project/hyperkv/eviction"
	"github.com/hyperkv-project/hyperkv/keyspace"
	"github.com/hyperkv-project/hyperkv/pubsub"
	"github.com/hyperkv-project/hyperkv/storage"
)

func startTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0 // overridden below by the actual listener address

	ks := keyspace.New(keyspace.Options{
		Backend:         storage.NewMemoryBackend(),
		EvictionPolicy:  eviction.LRU,
		MemoryThreshold: 0.9,
	})
	broker := pubsub.NewBroker(16, pubsub.DisconnectSlowSubscriber)
	srv := New(cfg, ks, broker, nil, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv.listener = ln
	cfg.Port = ln.Addr().(*net.TCPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	go srv.acceptLoop(ctx)

	return ln.Addr().String(), func() {
		cancel()
		ln.Close()
	}
}

func dialAndExchange(t *testing.T, addr string, cmd string) string {
	t.Helper()
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	nc.SetDeadline(time.Now().Add(2 * time.Second))

	nc.Write([]byte(cmd))
	r := bufio.NewReader(nc)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	return line
}

func TestPingPong(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	line := dialAndExchange(t, addr, "*1\r\n$4\r\nPING\r\n")
	if strings.TrimRight(line, "\r\n") != "+PONG" {
		t.Fatalf("unexpected reply: %q", line)
	}
}

func TestSetThenGet(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer nc.Close()
	nc.SetDeadline(time.Now().Add(2 * time.Second))

	nc.Write([]byte("*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n"))
	r := bufio.NewReader(nc)
	setReply, _ := r.ReadString('\n')
	if strings.TrimRight(setReply, "\r\n") != "+OK" {
		t.Fatalf("unexpected SET reply: %q", setReply)
	}

	nc.Write([]byte("*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"))
	header, _ := r.ReadString('\n')
	if strings.TrimRight(header, "\r\n") != "$3" {
		t.Fatalf("unexpected GET bulk header: %q", header)
	}
	body, _ := r.ReadString('\n')
	if strings.TrimRight(body, "\r\n") != "bar" {
		t.Fatalf("unexpected GET body: %q", body)
	}
}

func TestConnectionAcceptedUnderDefaultLimit(t *testing.T) {
	addr, stop := startTestServer(t)
	defer stop()

	// The test server is constructed with cfg.MaxConnections left at
	// its config.Default() value, so this just exercises the accept
	// path without tripping the limit; the limit check itself is
	// covered by TestAtCapacity below.
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	nc.Close()
}

func TestAtCapacity(t *testing.T) {
	cfg := config.Default()
	cfg.MaxConnections = 1
	s := &Server{cfg: cfg, conns: map[string]*conn{"a": {}}}
	if !s.atCapacity() {
		t.Fatal("expected at capacity with 1 connection and max_connections=1")
	}
}
