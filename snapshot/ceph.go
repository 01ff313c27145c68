//go:build ceph

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

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ceph/go-ceph/rados"
)

// CephOptions configures a CephStore's RADOS connection.
type CephOptions struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// CephStore persists snapshots as RADOS objects, one object per
// snapshot, named by the same "snapshot_<unix_ts>[.ext]" convention
// LocalStore and S3Store use.
type CephStore struct {
	ioctx  *rados.IOContext
	prefix string
}

// NewCephStore opens a RADOS connection and IO context for the
// configured pool.
func NewCephStore(opts CephOptions) (Store, error) {
	conn, err := rados.NewConnWithClusterAndUser(opts.ClusterName, opts.UserName)
	if err != nil {
		return nil, fmt.Errorf("snapshot: ceph connecting: %w", err)
	}
	if opts.ConfFile != "" {
		if err := conn.ReadConfigFile(opts.ConfFile); err != nil {
			return nil, fmt.Errorf("snapshot: ceph reading conf: %w", err)
		}
	}
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("snapshot: ceph connect: %w", err)
	}
	ioctx, err := conn.OpenIOContext(opts.Pool)
	if err != nil {
		return nil, fmt.Errorf("snapshot: ceph opening pool %s: %w", opts.Pool, err)
	}
	return &CephStore{ioctx: ioctx, prefix: strings.Trim(opts.Prefix, "/")}, nil
}

func (c *CephStore) objectName(name string) string {
	if c.prefix == "" {
		return name
	}
	return path.Join(c.prefix, name)
}

func (c *CephStore) Save(img Image, compression Compression) (string, error) {
	name := fmt.Sprintf("snapshot_%d%s", img.Timestamp, extForCompression(compression))
	payload, err := encode(img, compression)
	if err != nil {
		return "", err
	}
	if err := c.ioctx.WriteFull(c.objectName(name), payload); err != nil {
		return "", fmt.Errorf("snapshot: ceph write %s: %w", name, err)
	}
	return name, nil
}

func (c *CephStore) List() ([]string, error) {
	iter, err := c.ioctx.Iter()
	if err != nil {
		return nil, fmt.Errorf("snapshot: ceph listing pool: %w", err)
	}
	defer iter.Close()

	var names []string
	for iter.Next() {
		obj := iter.Value()
		base := obj
		if c.prefix != "" {
			if !strings.HasPrefix(obj, c.prefix+"/") {
				continue
			}
			base = strings.TrimPrefix(obj, c.prefix+"/")
		}
		if strings.HasPrefix(base, "snapshot_") {
			names = append(names, base)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		return snapshotTimestamp(names[i]) < snapshotTimestamp(names[j])
	})
	return names, nil
}

func (c *CephStore) LoadLatest() (Image, bool, error) {
	names, err := c.List()
	if err != nil {
		return Image{}, false, err
	}
	if len(names) == 0 {
		return Image{}, false, nil
	}
	latest := names[len(names)-1]
	stat, err := c.ioctx.Stat(c.objectName(latest))
	if err != nil {
		return Image{}, false, fmt.Errorf("snapshot: ceph stat %s: %w", latest, err)
	}
	buf := make([]byte, stat.Size)
	if _, err := c.ioctx.Read(c.objectName(latest), buf, 0); err != nil {
		return Image{}, false, fmt.Errorf("snapshot: ceph read %s: %w", latest, err)
	}
	img, err := decode(buf, compressionOf(latest))
	if err != nil {
		return Image{}, false, err
	}
	return img, true, nil
}

func (c *CephStore) Retain(n int) error {
	if n <= 0 {
		return nil
	}
	names, err := c.List()
	if err != nil {
		return err
	}
	if len(names) <= n {
		return nil
	}
	for _, stale := range names[:len(names)-n] {
		if err := c.ioctx.Delete(c.objectName(stale)); err != nil {
			return fmt.Errorf("snapshot: ceph delete %s: %w", stale, err)
		}
	}
	return nil
}
