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

// Package crdt implements the CRDT-tagged value types (LWW register,
// OR-set) and the Hybrid Logical Clock that totally orders their
// writes across nodes.
package crdt

import "sync"

// HLC is a Hybrid Logical Clock reading: a logical counter paired
// with the wall-time component it was derived from, plus the node
// that produced it. Two HLC values order by (Logical, WallTime) and
// break ties on NodeID lexicographically, per §4.7.
type HLC struct {
	Logical  int64
	WallTime int64 // unix nanos at the time Logical was bumped
	NodeID   string
}

// Less reports whether h sorts strictly before o.
func (h HLC) Less(o HLC) bool {
	if h.Logical != o.Logical {
		return h.Logical < o.Logical
	}
	if h.WallTime != o.WallTime {
		return h.WallTime < o.WallTime
	}
	return h.NodeID < o.NodeID
}

// Clock generates monotonically ordered HLC readings for one node.
// It is safe for concurrent use.
type Clock struct {
	mu      sync.Mutex
	nodeID  string
	logical int64
	wall    int64
	nowFunc func() int64 // unix nanos; overridable in tests
}

// NewClock constructs a Clock for nodeID. nowFunc supplies the wall
// clock reading in unix nanoseconds.
func NewClock(nodeID string, nowFunc func() int64) *Clock {
	return &Clock{nodeID: nodeID, nowFunc: nowFunc}
}

// Tick advances the clock for a local event: logical = max(logical,
// wallClock) + 1.
func (c *Clock) Tick() HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.nowFunc()
	if wall > c.logical {
		c.logical = wall
	}
	c.logical++
	c.wall = wall
	return HLC{Logical: c.logical, WallTime: c.wall, NodeID: c.nodeID}
}

// NodeID returns the id this clock stamps its readings with.
func (c *Clock) NodeID() string { return c.nodeID }

// Receive advances the clock on receiving a remote HLC reading:
// logical = max(local.logical, msg.logical, wallClock) + 1.
func (c *Clock) Receive(msg HLC) HLC {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.nowFunc()
	max := c.logical
	if msg.Logical > max {
		max = msg.Logical
	}
	if wall > max {
		max = wall
	}
	c.logical = max + 1
	c.wall = wall
	return HLC{Logical: c.logical, WallTime: c.wall, NodeID: c.nodeID}
}
