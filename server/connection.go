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

package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperkv-project/hyperkv/pubsub"
)

// connState is the Normal/Subscribed state machine a connection moves
// through, per §4.10.
type connState int32

const (
	stateNormal connState = iota
	stateSubscribed
)

// subscribedOnlyCommands is the command vocabulary a Subscribed
// connection still accepts, per §4.10/§5.
var subscribedOnlyCommands = map[string]bool{
	"SUBSCRIBE":    true,
	"UNSUBSCRIBE":  true,
	"PSUBSCRIBE":   true,
	"PUNSUBSCRIBE": true,
	"PING":         true,
	"QUIT":         true,
}

// conn is one client connection's bookkeeping, mirroring the original
// ClientConnection stats plus the subscription set the dispatcher
// needs to clean up on close.
type conn struct {
	id         string
	remoteAddr string
	connectedAt time.Time

	netConn net.Conn

	mu            sync.Mutex
	writeMu       sync.Mutex
	lastActivity  time.Time
	state         connState
	channels      map[string]bool
	patterns      map[string]bool
	authenticated bool

	bytesSent     int64
	bytesReceived int64
	commands      int64

	sub *pubsub.Subscriber

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, nc net.Conn) *conn {
	now := time.Now()
	return &conn{
		id:           id,
		remoteAddr:   nc.RemoteAddr().String(),
		connectedAt:  now,
		netConn:      nc,
		lastActivity: now,
		state:        stateNormal,
		channels:     make(map[string]bool),
		patterns:     make(map[string]bool),
		closed:       make(chan struct{}),
	}
}

func (c *conn) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

func (c *conn) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActivity)
}

func (c *conn) isSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateSubscribed
}

func (c *conn) enterSubscribed() {
	c.mu.Lock()
	c.state = stateSubscribed
	c.mu.Unlock()
}

func (c *conn) maybeLeaveSubscribed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.channels) == 0 && len(c.patterns) == 0 {
		c.state = stateNormal
	}
}

func (c *conn) addBytesReceived(n int)        { atomic.AddInt64(&c.bytesReceived, int64(n)) }
func (c *conn) addBytesSent(n int)             { atomic.AddInt64(&c.bytesSent, int64(n)) }
func (c *conn) incCommands()                   { atomic.AddInt64(&c.commands, 1) }

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.netConn.Close()
	})
}
