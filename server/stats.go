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

import "sync/atomic"

// Stats is the server-wide counter set surfaced by INFO, matching the
// original TcpServer.stats/StorageEngine.stats shape (supplemented
// feature, see SPEC_FULL.md).
type Stats struct {
	connectionsCreated int64
	connectionsClosed  int64
	commandsProcessed  int64
	snapshotsCreated   int64
	errors             int64
}

func (s *Stats) incConnectionsCreated() { atomic.AddInt64(&s.connectionsCreated, 1) }
func (s *Stats) incConnectionsClosed()  { atomic.AddInt64(&s.connectionsClosed, 1) }
func (s *Stats) incCommandsProcessed()  { atomic.AddInt64(&s.commandsProcessed, 1) }
func (s *Stats) incSnapshotsCreated()   { atomic.AddInt64(&s.snapshotsCreated, 1) }
func (s *Stats) incErrors()             { atomic.AddInt64(&s.errors, 1) }

func (s *Stats) snapshot() (created, closed, commands, snapshots, errs int64) {
	return atomic.LoadInt64(&s.connectionsCreated),
		atomic.LoadInt64(&s.connectionsClosed),
		atomic.LoadInt64(&s.commandsProcessed),
		atomic.LoadInt64(&s.snapshotsCreated),
		atomic.LoadInt64(&s.errors)
}
