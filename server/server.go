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

// Package server implements the connection dispatcher: the TCP/TLS
// listener, the per-connection RESP read/write loop and Normal/
// Subscribed state machine, the slow-client sweep, and the
// supervised background tasks (TTL sweep, snapshot writer).
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/dc0d/onexit"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/hyperkv-project/hyperkv/aof"
	"github.com/hyperkv-project/hyperkv/config"
	"github.com/hyperkv-project/hyperkv/keyspace"
	"github.com/hyperkv-project/hyperkv/pubsub"
	"github.com/hyperkv-project/hyperkv/snapshot"
)

// Server is the connection dispatcher: it owns the listener, the
// client registry, and the background tasks that run alongside the
// keyspace's own single-writer loop.
type Server struct {
	cfg      *config.Config
	ks       *keyspace.Keyspace
	broker   *pubsub.Broker
	logger   *slog.Logger
	aofw     *aof.Writer
	snap     snapshot.Store

	listener net.Listener

	mu    sync.RWMutex
	conns map[string]*conn

	stats Stats
}

// New wires a Server over an already-constructed Keyspace and Broker.
// aofw and snap may be nil when the corresponding config flags are off.
func New(cfg *config.Config, ks *keyspace.Keyspace, broker *pubsub.Broker, aofw *aof.Writer, snap snapshot.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		ks:     ks,
		broker: broker,
		aofw:   aofw,
		snap:   snap,
		logger: logger,
		conns:  make(map[string]*conn),
	}
}

// ListenAndServe binds the listener (optionally with SO_REUSEPORT or
// TLS per cfg) and runs the accept loop plus supervised background
// tasks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	ln, err := s.listen(addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	if s.cfg.EnableTLS {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			ln.Close()
			return fmt.Errorf("server: load TLS keypair: %w", err)
		}
		ln = tls.NewListener(ln, &tls.Config{Certificates: []tls.Certificate{cert}})
	}
	s.listener = ln

	onexit.Register(func() {
		s.shutdown()
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.acceptLoop(gctx) })
	g.Go(func() error { return s.slowClientSweepLoop(gctx) })
	if s.cfg.TTLCheckInterval > 0 {
		g.Go(func() error { return s.ttlSweepLoop(gctx) })
	}
	if s.snap != nil {
		g.Go(func() error { return s.snapshotLoop(gctx) })
	}

	<-gctx.Done()
	s.shutdown()
	return g.Wait()
}

func (s *Server) listen(addr string) (net.Listener, error) {
	if !s.cfg.ReusePort {
		return net.Listen("tcp", addr)
	}
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", addr)
}

func (s *Server) acceptLoop(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()
	for {
		nc, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.logger.Error("accept failed", "err", err)
				return err
			}
		}
		if s.atCapacity() {
			nc.Write([]byte("-ERR max number of clients reached\r\n"))
			nc.Close()
			continue
		}
		c := newConn(uuid.NewString(), nc)
		s.register(c)
		s.stats.incConnectionsCreated()
		go s.handleConnection(ctx, c)
	}
}

func (s *Server) atCapacity() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.MaxConnections > 0 && len(s.conns) >= s.cfg.MaxConnections
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) unregister(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()

	c.mu.Lock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	patterns := make([]string, 0, len(c.patterns))
	for p := range c.patterns {
		patterns = append(patterns, p)
	}
	c.mu.Unlock()

	for _, ch := range channels {
		s.broker.Unsubscribe(ch, c.id)
	}
	for _, p := range patterns {
		s.broker.PUnsubscribe(p, c.id)
	}
	s.stats.incConnectionsClosed()
}

// slowClientSweepLoop closes connections idle past cfg.ClientTimeoutSeconds
// every 30s, per §4.10. Subscribed connections are exempt.
func (s *Server) slowClientSweepLoop(ctx context.Context) error {
	if s.cfg.ClientTimeoutSeconds <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	timeout := time.Duration(s.cfg.ClientTimeoutSeconds) * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.mu.RLock()
			targets := make([]*conn, 0)
			for _, c := range s.conns {
				if c.isSubscribed() {
					continue
				}
				if c.idleFor() > timeout {
					targets = append(targets, c)
				}
			}
			s.mu.RUnlock()
			for _, c := range targets {
				s.logger.Info("closing idle connection", "id", c.id, "remote", c.remoteAddr)
				c.close()
			}
		}
	}
}

// ttlSweepLoop performs active expiration, complementing the lazy
// expiration every Keyspace read/write already performs.
func (s *Server) ttlSweepLoop(ctx context.Context) error {
	interval := time.Duration(s.cfg.TTLCheckInterval) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ks.Sweep(s.cfg.EvictionBatchSize)
		}
	}
}

func (s *Server) snapshotLoop(ctx context.Context) error {
	interval := 5 * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.writeSnapshot(); err != nil {
				s.logger.Error("snapshot failed", "err", err)
			}
		}
	}
}

func (s *Server) writeSnapshot() error {
	keys, err := s.ks.Keys("*")
	if err != nil {
		return err
	}
	img := snapshot.Image{Timestamp: time.Now().UnixNano(), Records: make([]snapshot.Record, 0, len(keys))}
	for _, k := range keys {
		v, ok, err := s.ks.Get(k)
		if err != nil || !ok {
			continue
		}
		img.Records = append(img.Records, snapshot.Record{Key: k, Value: v})
	}
	compression := snapshot.Compression(s.cfg.SnapshotCompress)
	if _, err := s.snap.Save(img, compression); err != nil {
		return err
	}
	s.stats.incSnapshotsCreated()
	return s.snap.Retain(s.cfg.SnapshotRetain)
}

// shutdown stops accepting, closes every connection, and flushes the
// append log, per §5's cancellation/timeouts contract.
func (s *Server) shutdown() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.RLock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()
	for _, c := range conns {
		c.close()
	}
	if s.aofw != nil {
		s.aofw.Close()
	}
	if s.cfg.SnapshotEnabled && s.snap != nil {
		if err := s.writeSnapshot(); err != nil {
			s.logger.Error("final snapshot failed", "err", err)
		}
	}
}
