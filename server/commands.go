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
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/hyperkv-project/hyperkv/crdt"
	"github.com/hyperkv-project/hyperkv/keyspace"
	"github.com/hyperkv-project/hyperkv/resp"
)

const (
	errSyntax    = "ERR syntax error"
	errWrongArgs = "ERR wrong number of arguments"
)

// setErrorFrame maps a keyspace write error to its RESP error frame,
// giving OOM its own reply type per §7's error taxonomy rather than a
// generic -ERR.
func setErrorFrame(err error) resp.Frame {
	if errors.Is(err, keyspace.ErrOOM) {
		return errorFrame(err.Error())
	}
	return errorFrame("ERR " + err.Error())
}

// handleConnection drives one connection's read loop: decode a
// command frame, dispatch it, write the reply. A second goroutine is
// started lazily the first time the connection subscribes, to drain
// its pub/sub queue without blocking command reads.
func (s *Server) handleConnection(ctx context.Context, c *conn) {
	defer s.unregister(c)
	defer c.close()

	dec := resp.NewDecoder()
	readBuf := make([]byte, 64*1024)
	var writeMu = &c.writeMu

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		n, err := c.netConn.Read(readBuf)
		if n > 0 {
			c.addBytesReceived(n)
			dec.Feed(readBuf[:n])
		}
		if err != nil {
			return
		}

		for {
			frame, ok, decErr := dec.Next()
			if decErr != nil {
				writeMu.Lock()
				reply := resp.WriteError(nil, "ERR protocol error")
				c.netConn.Write(reply)
				writeMu.Unlock()
				return
			}
			if !ok {
				break
			}
			argv, isCmd := frame.Command()
			if !isCmd || len(argv) == 0 {
				continue
			}
			c.touch()
			c.incCommands()
			s.stats.incCommandsProcessed()

			reply := s.dispatch(ctx, c, argv)
			out := resp.Encode(nil, reply)
			writeMu.Lock()
			wn, werr := c.netConn.Write(out)
			writeMu.Unlock()
			c.addBytesSent(wn)
			if werr != nil {
				return
			}
			if strings.EqualFold(argv[0], "QUIT") {
				return
			}
		}
	}
}

// pubsubWriteLoop drains c.sub's queue and writes message/pmessage
// frames to the socket, serialized against command replies by
// c.writeMu. It runs for the life of the subscription.
func (s *Server) pubsubWriteLoop(c *conn) {
	for {
		select {
		case msg, ok := <-c.sub.Queue():
			if !ok {
				c.close()
				return
			}
			var f resp.Frame
			if msg.Pattern != "" {
				f = resp.ArrayFrame(
					resp.BulkStringFrame("pmessage"),
					resp.BulkStringFrame(msg.Pattern),
					resp.BulkStringFrame(msg.Channel),
					resp.BulkStringFrame(string(msg.Payload)),
				)
			} else {
				f = resp.ArrayFrame(
					resp.BulkStringFrame("message"),
					resp.BulkStringFrame(msg.Channel),
					resp.BulkStringFrame(string(msg.Payload)),
				)
			}
			out := resp.Encode(nil, f)
			c.writeMu.Lock()
			n, err := c.netConn.Write(out)
			c.writeMu.Unlock()
			c.addBytesSent(n)
			if err != nil {
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func errorFrame(msg string) resp.Frame { return resp.Frame{Kind: resp.Error, Str: msg} }
func okFrame() resp.Frame              { return resp.Frame{Kind: resp.SimpleString, Str: "OK"} }
func intFrame(n int64) resp.Frame      { return resp.Frame{Kind: resp.Integer, Int: n} }
func nilFrame() resp.Frame             { return resp.NullBulkStringFrame() }

// dispatch routes one command to its handler, enforcing the
// Normal/Subscribed state machine and AUTH gating.
func (s *Server) dispatch(ctx context.Context, c *conn, argv []string) resp.Frame {
	name := strings.ToUpper(argv[0])
	args := argv[1:]

	if c.isSubscribed() && !subscribedOnlyCommands[name] {
		return errorFrame("ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PING / QUIT allowed in this context")
	}
	if s.cfg.AuthPassword != "" && !c.authenticated && name != "AUTH" && name != "QUIT" {
		return errorFrame("NOAUTH Authentication required")
	}

	switch name {
	case "PING":
		if len(args) == 0 {
			return resp.Frame{Kind: resp.SimpleString, Str: "PONG"}
		}
		return resp.BulkStringFrame(args[0])
	case "QUIT":
		return okFrame()
	case "AUTH":
		return s.cmdAuth(c, args)

	case "GET":
		return s.cmdGet(args)
	case "SET":
		return s.cmdSet(args)
	case "MGET":
		return s.cmdMGet(args)
	case "MSET":
		return s.cmdMSet(args)
	case "DEL":
		return s.cmdDel(args)
	case "EXISTS":
		return s.cmdExists(args)
	case "EXPIRE":
		return s.cmdExpire(args)
	case "TTL":
		return s.cmdTTL(args)
	case "PERSIST":
		return s.cmdPersist(args)
	case "KEYS":
		return s.cmdKeys(args)
	case "SCAN":
		return s.cmdScan(args)
	case "FLUSHDB":
		return s.cmdFlushDB(args)

	case "PUBLISH":
		return s.cmdPublish(args)
	case "SUBSCRIBE":
		return s.cmdSubscribe(c, args)
	case "UNSUBSCRIBE":
		return s.cmdUnsubscribe(c, args)
	case "PSUBSCRIBE":
		return s.cmdPSubscribe(c, args)
	case "PUNSUBSCRIBE":
		return s.cmdPUnsubscribe(c, args)

	case "INFO":
		return s.cmdInfo(args)
	case "CLIENT":
		return s.cmdClient(c, args)
	case "CONFIG":
		return s.cmdConfig(args)
	case "SHUTDOWN":
		go s.shutdown()
		return okFrame()

	default:
		return errorFrame("ERR unknown command '" + argv[0] + "'")
	}
}

func (s *Server) cmdAuth(c *conn, args []string) resp.Frame {
	if len(args) != 1 {
		return errorFrame(errWrongArgs)
	}
	if args[0] != s.cfg.AuthPassword {
		return errorFrame("ERR invalid password")
	}
	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()
	return okFrame()
}

// cmdGet serves plain GET. A CRDT-typed key is not WRONGTYPE here:
// per §4.8's policy, a plain GET against one returns its primitive
// projection (LWW's current value, OR-Set's current members).
func (s *Server) cmdGet(args []string) resp.Frame {
	if len(args) != 1 {
		return errorFrame(errWrongArgs)
	}
	cv, ok, err := s.ks.CRDTGet(args[0])
	if err != nil && !errors.Is(err, keyspace.ErrWrongType) {
		return errorFrame("ERR " + err.Error())
	}
	if err == nil && ok {
		projected, projErr := cv.Project()
		if projErr != nil {
			return errorFrame("ERR " + projErr.Error())
		}
		return resp.BulkStringFrame(string(projected))
	}

	v, ok, err := s.ks.Get(args[0])
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	if !ok {
		return nilFrame()
	}
	return resp.BulkStringFrame(string(v))
}

func (s *Server) cmdSet(args []string) resp.Frame {
	if len(args) < 2 {
		return errorFrame(errWrongArgs)
	}
	key, value := args[0], args[1]
	var opts keyspace.SetOptions
	var crdtType crdt.Type
	isCRDT := false
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "NX":
			opts.OnlyIfNX = true
		case "XX":
			opts.OnlyIfXX = true
		case "EX":
			i++
			if i >= len(args) {
				return errorFrame(errSyntax)
			}
			seconds, err := strconv.Atoi(args[i])
			if err != nil {
				return errorFrame(errSyntax)
			}
			opts.TTL = time.Duration(seconds) * time.Second
		case "PX":
			i++
			if i >= len(args) {
				return errorFrame(errSyntax)
			}
			ms, err := strconv.Atoi(args[i])
			if err != nil {
				return errorFrame(errSyntax)
			}
			opts.TTL = time.Duration(ms) * time.Millisecond
		case "CRDT":
			i++
			if i >= len(args) {
				return errorFrame(errSyntax)
			}
			isCRDT = true
			crdtType = crdt.Type(strings.ToLower(args[i]))
		default:
			return errorFrame(errSyntax)
		}
	}
	if opts.TTL < 0 {
		s.ks.Del(key)
		return okFrame()
	}
	if isCRDT {
		_, ok, err := s.ks.CRDTSet(key, crdtType, []byte(value), opts)
		if err != nil {
			return setErrorFrame(err)
		}
		if !ok {
			return nilFrame()
		}
		return okFrame()
	}
	ok, err := s.ks.Set(key, []byte(value), opts)
	if err != nil {
		return setErrorFrame(err)
	}
	if !ok {
		return nilFrame()
	}
	return okFrame()
}

func (s *Server) cmdMGet(args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errWrongArgs)
	}
	items := make([]resp.Frame, len(args))
	for i, key := range args {
		f := s.cmdGet([]string{key})
		if f.Kind != resp.BulkString {
			f = nilFrame()
		}
		items[i] = f
	}
	return resp.ArrayFrame(items...)
}

func (s *Server) cmdMSet(args []string) resp.Frame {
	if len(args) == 0 || len(args)%2 != 0 {
		return errorFrame(errWrongArgs)
	}
	for i := 0; i < len(args); i += 2 {
		if _, err := s.ks.Set(args[i], []byte(args[i+1]), keyspace.SetOptions{}); err != nil {
			return setErrorFrame(err)
		}
	}
	return okFrame()
}

func (s *Server) cmdDel(args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errWrongArgs)
	}
	n, err := s.ks.Del(args...)
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	return intFrame(int64(n))
}

func (s *Server) cmdExists(args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errWrongArgs)
	}
	n, err := s.ks.Exists(args...)
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	return intFrame(int64(n))
}

func (s *Server) cmdExpire(args []string) resp.Frame {
	if len(args) != 2 {
		return errorFrame(errWrongArgs)
	}
	seconds, err := strconv.Atoi(args[1])
	if err != nil {
		return errorFrame(errSyntax)
	}
	if seconds <= 0 {
		n, err := s.ks.Del(args[0])
		if err != nil {
			return errorFrame("ERR " + err.Error())
		}
		return intFrame(int64(n))
	}
	ok, err := s.ks.Expire(args[0], time.Duration(seconds)*time.Second)
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	if ok {
		return intFrame(1)
	}
	return intFrame(0)
}

func (s *Server) cmdTTL(args []string) resp.Frame {
	if len(args) != 1 {
		return errorFrame(errWrongArgs)
	}
	ttl, err := s.ks.TTL(args[0])
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	return intFrame(ttl)
}

func (s *Server) cmdPersist(args []string) resp.Frame {
	if len(args) != 1 {
		return errorFrame(errWrongArgs)
	}
	ok, err := s.ks.Persist(args[0])
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	if ok {
		return intFrame(1)
	}
	return intFrame(0)
}

func (s *Server) cmdKeys(args []string) resp.Frame {
	pattern := "*"
	if len(args) == 1 {
		pattern = args[0]
	} else if len(args) > 1 {
		return errorFrame(errWrongArgs)
	}
	keys, err := s.ks.Keys(pattern)
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	items := make([]resp.Frame, len(keys))
	for i, k := range keys {
		items[i] = resp.BulkStringFrame(k)
	}
	return resp.ArrayFrame(items...)
}

func (s *Server) cmdScan(args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errWrongArgs)
	}
	cursor := args[0]
	match := ""
	count := 0
	for i := 1; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "MATCH":
			i++
			if i >= len(args) {
				return errorFrame(errSyntax)
			}
			match = args[i]
		case "COUNT":
			i++
			if i >= len(args) {
				return errorFrame(errSyntax)
			}
			n, err := strconv.Atoi(args[i])
			if err != nil {
				return errorFrame(errSyntax)
			}
			count = n
		default:
			return errorFrame(errSyntax)
		}
	}
	next, keys, err := s.ks.Scan(cursor, match, count)
	if err != nil {
		return errorFrame("ERR " + err.Error())
	}
	items := make([]resp.Frame, len(keys))
	for i, k := range keys {
		items[i] = resp.BulkStringFrame(k)
	}
	if next == "" {
		next = "0"
	}
	return resp.ArrayFrame(resp.BulkStringFrame(next), resp.ArrayFrame(items...))
}

func (s *Server) cmdFlushDB(args []string) resp.Frame {
	if len(args) != 0 {
		return errorFrame(errWrongArgs)
	}
	if err := s.ks.FlushDB(); err != nil {
		return errorFrame("ERR " + err.Error())
	}
	return okFrame()
}

func (s *Server) cmdPublish(args []string) resp.Frame {
	if len(args) != 2 {
		return errorFrame(errWrongArgs)
	}
	n := s.broker.Publish(args[0], []byte(args[1]))
	return intFrame(int64(n))
}

func (s *Server) cmdSubscribe(c *conn, args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errWrongArgs)
	}
	s.ensureSubscriber(c)
	for _, channel := range args {
		s.broker.Subscribe(channel, c.sub)
		c.mu.Lock()
		c.channels[channel] = true
		c.mu.Unlock()
	}
	c.enterSubscribed()
	return intFrame(int64(len(args)))
}

func (s *Server) cmdUnsubscribe(c *conn, args []string) resp.Frame {
	c.mu.Lock()
	targets := args
	if len(targets) == 0 {
		for ch := range c.channels {
			targets = append(targets, ch)
		}
	}
	c.mu.Unlock()
	for _, channel := range targets {
		s.broker.Unsubscribe(channel, c.id)
		c.mu.Lock()
		delete(c.channels, channel)
		c.mu.Unlock()
	}
	c.maybeLeaveSubscribed()
	return intFrame(int64(len(targets)))
}

func (s *Server) cmdPSubscribe(c *conn, args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errWrongArgs)
	}
	s.ensureSubscriber(c)
	for _, pattern := range args {
		if err := s.broker.PSubscribe(pattern, c.sub); err != nil {
			return errorFrame("ERR " + err.Error())
		}
		c.mu.Lock()
		c.patterns[pattern] = true
		c.mu.Unlock()
	}
	c.enterSubscribed()
	return intFrame(int64(len(args)))
}

func (s *Server) cmdPUnsubscribe(c *conn, args []string) resp.Frame {
	c.mu.Lock()
	targets := args
	if len(targets) == 0 {
		for p := range c.patterns {
			targets = append(targets, p)
		}
	}
	c.mu.Unlock()
	for _, pattern := range targets {
		s.broker.PUnsubscribe(pattern, c.id)
		c.mu.Lock()
		delete(c.patterns, pattern)
		c.mu.Unlock()
	}
	c.maybeLeaveSubscribed()
	return intFrame(int64(len(targets)))
}

// ensureSubscriber lazily creates c's Subscriber and starts the
// goroutine draining it, the first time the connection subscribes to
// anything.
func (s *Server) ensureSubscriber(c *conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return
	}
	c.sub = s.broker.NewSubscriberForBroker(c.id, func(reason string) {
		c.close()
	})
	go s.pubsubWriteLoop(c)
}
