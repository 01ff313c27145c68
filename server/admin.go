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
	"fmt"
	"strings"
	"time"

	"github.com/hyperkv-project/hyperkv/resp"
)

// cmdInfo renders Redis-style `key:value\r\n` sections, per §6.
func (s *Server) cmdInfo(args []string) resp.Frame {
	created, closed, commands, snapshots, errs := s.stats.snapshot()
	s.mu.RLock()
	active := len(s.conns)
	s.mu.RUnlock()
	size, _ := s.ks.Size()

	var b strings.Builder
	fmt.Fprintf(&b, "# Server\r\n")
	fmt.Fprintf(&b, "tcp_port:%d\r\n", s.cfg.Port)
	fmt.Fprintf(&b, "node_id:%s\r\n", s.cfg.NodeID)
	fmt.Fprintf(&b, "# Clients\r\n")
	fmt.Fprintf(&b, "connected_clients:%d\r\n", active)
	fmt.Fprintf(&b, "# Keyspace\r\n")
	fmt.Fprintf(&b, "keys:%d\r\n", size)
	fmt.Fprintf(&b, "# Stats\r\n")
	fmt.Fprintf(&b, "connections_created:%d\r\n", created)
	fmt.Fprintf(&b, "connections_closed:%d\r\n", closed)
	fmt.Fprintf(&b, "commands_processed:%d\r\n", commands)
	fmt.Fprintf(&b, "snapshots_created:%d\r\n", snapshots)
	fmt.Fprintf(&b, "errors:%d\r\n", errs)
	return resp.BulkStringFrame(b.String())
}

// cmdClient implements CLIENT LIST and CLIENT KILL <id>, the
// supplemented administrative surface from the original
// ClientConnection/kill_client behavior.
func (s *Server) cmdClient(self *conn, args []string) resp.Frame {
	if len(args) == 0 {
		return errorFrame(errSyntax)
	}
	switch strings.ToUpper(args[0]) {
	case "LIST":
		return s.cmdClientList()
	case "KILL":
		if len(args) != 2 {
			return errorFrame(errWrongArgs)
		}
		return s.cmdClientKill(args[1])
	default:
		return errorFrame(errSyntax)
	}
}

func (s *Server) cmdClientList() resp.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for _, c := range s.conns {
		c.mu.Lock()
		fmt.Fprintf(&b, "id=%s addr=%s age=%d idle=%d cmds=%d bytes_sent=%d bytes_received=%d\n",
			c.id, c.remoteAddr,
			int(time.Since(c.connectedAt).Seconds()),
			int(time.Since(c.lastActivity).Seconds()),
			c.commands, c.bytesSent, c.bytesReceived,
		)
		c.mu.Unlock()
	}
	return resp.BulkStringFrame(b.String())
}

func (s *Server) cmdClientKill(id string) resp.Frame {
	s.mu.RLock()
	target, ok := s.conns[id]
	s.mu.RUnlock()
	if !ok {
		return errorFrame("ERR No such client")
	}
	target.close()
	return okFrame()
}

// cmdConfig implements CONFIG GET/SET over config.Config's own
// name-dispatch registry.
func (s *Server) cmdConfig(args []string) resp.Frame {
	if len(args) < 2 {
		return errorFrame(errWrongArgs)
	}
	switch strings.ToUpper(args[0]) {
	case "GET":
		v, ok := s.cfg.Get(args[1])
		if !ok {
			return resp.ArrayFrame()
		}
		return resp.ArrayFrame(resp.BulkStringFrame(args[1]), resp.BulkStringFrame(v))
	case "SET":
		if len(args) != 3 {
			return errorFrame(errWrongArgs)
		}
		if err := s.cfg.Set(args[1], args[2]); err != nil {
			return errorFrame("ERR " + err.Error())
		}
		return okFrame()
	default:
		return errorFrame(errSyntax)
	}
}
