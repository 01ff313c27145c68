//go:build !ceph

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

package snapshot

// CephOptions configures a CephStore's RADOS connection. This build
// has no librados binding compiled in; see NewCephStore.
type CephOptions struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// NewCephStore panics: Ceph support requires cgo and librados, and
// is only compiled in with -tags=ceph.
func NewCephStore(opts CephOptions) (Store, error) {
	panic("Ceph support not compiled in. Build with: go build -tags=ceph")
}
