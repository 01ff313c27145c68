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

// Package snapshot implements point-in-time keyspace images: local
// filesystem storage with pluggable compression, plus optional
// off-box S3 and Ceph/RADOS backends.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Record is one key's image within a snapshot.
type Record struct {
	Key       string `json:"key"`
	Value     []byte `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Image is the full serialized snapshot payload: timestamp, the live
// keyspace, and free-form metadata (stats, config fingerprint).
type Image struct {
	Timestamp int64             `json:"timestamp"`
	Records   []Record          `json:"records"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Compression names the codec a snapshot's bytes are wrapped in.
type Compression string

const (
	None Compression = ""
	Gzip Compression = "gz"
	LZ4  Compression = "lz4"
	XZ   Compression = "xz"
)

// Store persists and retrieves Images. Implementations back onto the
// local filesystem, S3, or Ceph RADOS.
type Store interface {
	// Save serializes img and durably stores it, returning the name it
	// was stored under (e.g. "snapshot_1700000000").
	Save(img Image, compression Compression) (name string, err error)
	// LoadLatest returns the most recently saved snapshot, if any.
	LoadLatest() (Image, bool, error)
	// List returns stored snapshot names, oldest first.
	List() ([]string, error)
	// Retain deletes all but the n most recent snapshots.
	Retain(n int) error
}

// encode serializes img to JSON and wraps it in the requested codec.
func encode(img Image, compression Compression) ([]byte, error) {
	payload, err := json.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encoding image: %w", err)
	}
	switch compression {
	case None:
		return payload, nil
	case Gzip:
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(payload); err != nil {
			return nil, fmt.Errorf("snapshot: gzip compressing: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("snapshot: gzip finalizing: %w", err)
		}
		return buf.Bytes(), nil
	case LZ4:
		var buf bytes.Buffer
		lw := lz4.NewWriter(&buf)
		if _, err := lw.Write(payload); err != nil {
			return nil, fmt.Errorf("snapshot: lz4 compressing: %w", err)
		}
		if err := lw.Close(); err != nil {
			return nil, fmt.Errorf("snapshot: lz4 finalizing: %w", err)
		}
		return buf.Bytes(), nil
	case XZ:
		var buf bytes.Buffer
		xw, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("snapshot: xz compressing: %w", err)
		}
		if _, err := xw.Write(payload); err != nil {
			return nil, fmt.Errorf("snapshot: xz compressing: %w", err)
		}
		if err := xw.Close(); err != nil {
			return nil, fmt.Errorf("snapshot: xz finalizing: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown compression %q", compression)
	}
}

// decode reverses encode, given the compression the bytes were
// written with.
func decode(raw []byte, compression Compression) (Image, error) {
	var reader io.Reader = bytes.NewReader(raw)
	var err error
	switch compression {
	case None:
		// reader already set
	case Gzip:
		reader, err = gzip.NewReader(reader)
		if err != nil {
			return Image{}, fmt.Errorf("snapshot: gzip reader: %w", err)
		}
	case LZ4:
		reader = lz4.NewReader(reader)
	case XZ:
		reader, err = xz.NewReader(reader)
		if err != nil {
			return Image{}, fmt.Errorf("snapshot: xz reader: %w", err)
		}
	default:
		return Image{}, fmt.Errorf("snapshot: unknown compression %q", compression)
	}

	payload, err := io.ReadAll(reader)
	if err != nil {
		return Image{}, fmt.Errorf("snapshot: decompressing: %w", err)
	}
	var img Image
	if err := json.Unmarshal(payload, &img); err != nil {
		return Image{}, fmt.Errorf("snapshot: decoding image: %w", err)
	}
	return img, nil
}

// extForCompression maps a Compression to the filename suffix a
// stored snapshot carries, e.g. "snapshot_1700000000.gz".
func extForCompression(c Compression) string {
	if c == None {
		return ""
	}
	return "." + string(c)
}
