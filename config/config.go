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

// Package config holds the recognized HyperKV server options and the
// CLI flags that populate them.
package config

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/docker/go-units"
	"github.com/google/uuid"
)

// Backend selects the storage.Backend implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendBtree  Backend = "embedded_btree"
	BackendSQL    Backend = "embedded_mmap" // name kept from the spec's option enum; backed by database/sql
)

// EvictionPolicy selects the eviction.Policy implementation.
type EvictionPolicy string

const (
	PolicyLRU         EvictionPolicy = "lru"
	PolicyLFU         EvictionPolicy = "lfu"
	PolicyARC         EvictionPolicy = "arc"
	PolicyRandom      EvictionPolicy = "random"
	PolicyVolatileLRU EvictionPolicy = "volatile-lru"
	PolicyVolatileLFU EvictionPolicy = "volatile-lfu"
)

// FsyncPolicy controls append-log durability.
type FsyncPolicy string

const (
	FsyncAlways   FsyncPolicy = "always"
	FsyncEverysec FsyncPolicy = "everysec"
	FsyncNo       FsyncPolicy = "no"
)

// Config mirrors the recognized option matrix from the design notes.
type Config struct {
	mu sync.RWMutex

	Host           string
	Port           int
	DataDir        string
	Backend        Backend
	MaxMemory      int64 // bytes, 0 = disabled
	MaxConnections int

	EvictionPolicy    EvictionPolicy
	MemoryThreshold   float64
	EvictionBatchSize int

	AOFEnabled         bool
	AOFFsyncPolicy     FsyncPolicy
	SnapshotEnabled    bool
	SnapshotCompress   string // "", "gz", "lz4", "xz"
	SnapshotRetain     int
	TTLCheckInterval   int // milliseconds

	NodeID          string
	EnableClustering bool
	ReusePort        bool

	EnableTLS   bool
	TLSCertFile string
	TLSKeyFile  string

	AuthPassword string
	LogLevel     string

	ClientTimeoutSeconds int // 0 = disabled

	daemon  bool
	pidFile string
}

// Default returns the configuration defaults, matching the teacher's
// single-struct-literal defaults shape in storage/settings.go.
func Default() *Config {
	return &Config{
		Host:                 "127.0.0.1",
		Port:                 6379,
		DataDir:              "data",
		Backend:              BackendMemory,
		MaxMemory:            0,
		MaxConnections:       10000,
		EvictionPolicy:       PolicyLRU,
		MemoryThreshold:      0.9,
		EvictionBatchSize:    16,
		AOFEnabled:           true,
		AOFFsyncPolicy:       FsyncEverysec,
		SnapshotEnabled:      true,
		SnapshotCompress:     "gz",
		SnapshotRetain:       5,
		TTLCheckInterval:     100,
		NodeID:               newNodeID(),
		EnableClustering:     false,
		ReusePort:            false,
		EnableTLS:            false,
		LogLevel:             "info",
		ClientTimeoutSeconds: 0,
	}
}

func newNodeID() string {
	return uuid.NewString()
}

// ParseFlags populates a Config from the process's CLI flags, in the
// order enumerated by the CLI surface section of the design notes.
func ParseFlags(args []string) (*Config, error) {
	c := Default()
	fs := flag.NewFlagSet("hyperkv-server", flag.ContinueOnError)

	fs.StringVar(&c.Host, "host", c.Host, "bind host")
	fs.IntVar(&c.Port, "port", c.Port, "bind port")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "data directory")
	backend := fs.String("backend", string(c.Backend), "storage backend: memory|embedded_btree|embedded_mmap")
	maxMemory := fs.String("max-memory", "0", "max memory (e.g. 1GB, 512MB, or raw byte count); 0 disables eviction")
	fs.IntVar(&c.MaxConnections, "max-connections", c.MaxConnections, "max concurrent connections")
	policy := fs.String("eviction-policy", string(c.EvictionPolicy), "eviction policy: lru|lfu|arc|random|volatile-lru|volatile-lfu")
	fs.Float64Var(&c.MemoryThreshold, "memory-threshold", c.MemoryThreshold, "fraction of max-memory that triggers stop-evicting")
	fs.IntVar(&c.EvictionBatchSize, "eviction-batch-size", c.EvictionBatchSize, "keys evicted per batch")
	fs.BoolVar(&c.AOFEnabled, "aof", c.AOFEnabled, "enable append-only log")
	fsyncPolicy := fs.String("aof-fsync-policy", string(c.AOFFsyncPolicy), "always|everysec|no")
	fs.BoolVar(&c.SnapshotEnabled, "snapshot", c.SnapshotEnabled, "enable periodic snapshots")
	fs.StringVar(&c.SnapshotCompress, "snapshot-compression", c.SnapshotCompress, "snapshot compression: \"\"|gz|lz4|xz")
	fs.IntVar(&c.SnapshotRetain, "snapshot-retain", c.SnapshotRetain, "number of snapshots to retain")
	fs.IntVar(&c.TTLCheckInterval, "ttl-check-interval-ms", c.TTLCheckInterval, "active TTL sweep interval in milliseconds")
	fs.StringVar(&c.NodeID, "node-id", c.NodeID, "this node's CRDT node id")
	fs.BoolVar(&c.EnableClustering, "enable-clustering", c.EnableClustering, "accept CRDT merge records from a replication transport")
	fs.BoolVar(&c.ReusePort, "reuse-port", c.ReusePort, "bind with SO_REUSEPORT for multi-process sharding")
	fs.BoolVar(&c.EnableTLS, "tls", c.EnableTLS, "enable TLS")
	fs.StringVar(&c.TLSCertFile, "tls-cert-file", c.TLSCertFile, "TLS certificate path")
	fs.StringVar(&c.TLSKeyFile, "tls-key-file", c.TLSKeyFile, "TLS key path")
	fs.StringVar(&c.AuthPassword, "auth-password", c.AuthPassword, "require AUTH before other commands")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug|info|warn|error")
	fs.IntVar(&c.ClientTimeoutSeconds, "client-timeout", c.ClientTimeoutSeconds, "seconds of inactivity before a connection is closed; 0 disables")
	daemon := fs.Bool("daemon", false, "write -pid-file at startup; the process is not detached")
	pidFile := fs.String("pid-file", "", "write the pid to this file when daemonized")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	c.Backend = Backend(*backend)
	c.EvictionPolicy = EvictionPolicy(*policy)
	c.AOFFsyncPolicy = FsyncPolicy(*fsyncPolicy)

	bytes, err := units.RAMInBytes(*maxMemory)
	if err != nil {
		return nil, fmt.Errorf("invalid -max-memory %q: %w", *maxMemory, err)
	}
	c.MaxMemory = bytes

	c.daemon = *daemon
	c.pidFile = *pidFile

	return c, nil
}

// Daemonize reports whether --daemon was passed and the configured pid file.
func (c *Config) Daemonize() (bool, string) {
	return c.daemon, c.pidFile
}

// Get returns the current value of a named option for CONFIG GET,
// formatted the way Redis clients expect (plain text).
func (c *Config) Get(name string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch strings.ToLower(name) {
	case "host":
		return c.Host, true
	case "port":
		return strconv.Itoa(c.Port), true
	case "data_dir", "datadir":
		return c.DataDir, true
	case "backend":
		return string(c.Backend), true
	case "max_memory", "maxmemory":
		return strconv.FormatInt(c.MaxMemory, 10), true
	case "max_connections", "maxconnections":
		return strconv.Itoa(c.MaxConnections), true
	case "eviction_policy":
		return string(c.EvictionPolicy), true
	case "memory_threshold":
		return strconv.FormatFloat(c.MemoryThreshold, 'f', -1, 64), true
	case "eviction_batch_size":
		return strconv.Itoa(c.EvictionBatchSize), true
	case "aof_enabled", "appendonly":
		return strconv.FormatBool(c.AOFEnabled), true
	case "aof_fsync_policy", "appendfsync":
		return string(c.AOFFsyncPolicy), true
	case "snapshot_enabled", "save":
		return strconv.FormatBool(c.SnapshotEnabled), true
	case "snapshot_compression":
		return c.SnapshotCompress, true
	case "ttl_check_interval":
		return strconv.Itoa(c.TTLCheckInterval), true
	case "node_id":
		return c.NodeID, true
	case "enable_clustering":
		return strconv.FormatBool(c.EnableClustering), true
	case "enable_tls", "tls":
		return strconv.FormatBool(c.EnableTLS), true
	case "tls_cert_file":
		return c.TLSCertFile, true
	case "tls_key_file":
		return c.TLSKeyFile, true
	case "log_level", "loglevel":
		return c.LogLevel, true
	case "requirepass":
		return c.AuthPassword, true
	default:
		return "", false
	}
}

// Set mutates a named option for CONFIG SET. Options that require a
// restart to take effect (backend, data_dir, port, host) are rejected.
func (c *Config) Set(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch strings.ToLower(name) {
	case "max_memory", "maxmemory":
		b, err := units.RAMInBytes(value)
		if err != nil {
			return fmt.Errorf("invalid max_memory: %w", err)
		}
		c.MaxMemory = b
	case "max_connections", "maxconnections":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.MaxConnections = n
	case "eviction_policy":
		c.EvictionPolicy = EvictionPolicy(value)
	case "memory_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.MemoryThreshold = f
	case "eviction_batch_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.EvictionBatchSize = n
	case "aof_enabled", "appendonly":
		c.AOFEnabled = value == "yes" || value == "true" || value == "1"
	case "aof_fsync_policy", "appendfsync":
		c.AOFFsyncPolicy = FsyncPolicy(value)
	case "snapshot_enabled", "save":
		c.SnapshotEnabled = value == "yes" || value == "true" || value == "1"
	case "snapshot_compression":
		c.SnapshotCompress = value
	case "ttl_check_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.TTLCheckInterval = n
	case "requirepass":
		c.AuthPassword = value
	case "log_level", "loglevel":
		c.LogLevel = value
	default:
		return fmt.Errorf("unsupported or read-only parameter: %s", name)
	}
	return nil
}
