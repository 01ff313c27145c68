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

// Command hyperkv-server runs the RESP-compatible key/value server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperkv-project/hyperkv/aof"
	"github.com/hyperkv-project/hyperkv/config"
	"github.com/hyperkv-project/hyperkv/crdt"
	"github.com/hyperkv-project/hyperkv/eviction"
	"github.com/hyperkv-project/hyperkv/keyspace"
	"github.com/hyperkv-project/hyperkv/pubsub"
	"github.com/hyperkv-project/hyperkv/server"
	"github.com/hyperkv-project/hyperkv/snapshot"
	"github.com/hyperkv-project/hyperkv/storage"
)

func main() {
	fmt.Print(`HyperKV Copyright (C) 2026  HyperKV Contributors
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "hyperkv-server:", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("cannot create data_dir", "err", err)
		os.Exit(1)
	}

	if daemon, pidFile := cfg.Daemonize(); daemon && pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
			logger.Error("cannot write pid file", "err", err)
			os.Exit(1)
		}
	}

	backend, err := openBackend(cfg)
	if err != nil {
		logger.Error("cannot open storage backend", "err", err)
		os.Exit(1)
	}

	var aofw *aof.Writer
	if cfg.AOFEnabled {
		aofw, err = aof.Open(filepath.Join(cfg.DataDir, "appendonly.log"), aof.FsyncPolicy(cfg.AOFFsyncPolicy))
		if err != nil {
			logger.Error("cannot open append log", "err", err)
			os.Exit(1)
		}
	}

	var snapStore snapshot.Store
	if cfg.SnapshotEnabled {
		snapStore, err = snapshot.NewLocalStore(filepath.Join(cfg.DataDir, "snapshots"))
		if err != nil {
			logger.Error("cannot open snapshot store", "err", err)
			os.Exit(1)
		}
	}

	if err := loadState(cfg, backend, snapStore, aofw, logger); err != nil {
		logger.Error("recovery failed", "err", err)
		os.Exit(1)
	}

	broker := pubsub.NewBroker(pubsub.DefaultQueueSize, pubsub.DisconnectSlowSubscriber)
	clock := crdt.NewClock(cfg.NodeID, func() int64 { return time.Now().UnixNano() })
	ks := keyspace.New(keyspace.Options{
		Backend:             backend,
		EvictionPolicy:      eviction.Name(cfg.EvictionPolicy),
		MaxMemory:           cfg.MaxMemory,
		MemoryThreshold:     cfg.MemoryThreshold,
		EvictionBatchSize:   cfg.EvictionBatchSize,
		Clock:               clock,
		AOF:                 aofw,
		Broker:              broker,
		EnableNotifications: true,
	})

	srv := server.New(cfg, ks, broker, aofw, snapStore, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("hyperkv-server starting", "host", cfg.Host, "port", cfg.Port, "backend", cfg.Backend)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func openBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendBtree:
		return storage.NewBtreeBackend(32), nil
	case config.BackendSQL:
		return storage.NewSQLBackend(cfg.DataDir, "hyperkv")
	default:
		return storage.NewMemoryBackend(), nil
	}
}

// loadState loads the latest snapshot (if any) then replays the append
// log from the start, per §4.4's recovery order.
func loadState(cfg *config.Config, backend storage.Backend, snapStore snapshot.Store, aofw *aof.Writer, logger *slog.Logger) error {
	if snapStore != nil {
		img, ok, err := snapStore.LoadLatest()
		if err != nil {
			return err
		}
		if ok {
			for _, rec := range img.Records {
				backend.Put(rec.Key, storage.Entry{Value: rec.Value, ExpiresAt: rec.ExpiresAt})
			}
			logger.Info("loaded snapshot", "records", len(img.Records), "timestamp", img.Timestamp)
		}
	}

	if !cfg.AOFEnabled {
		return nil
	}
	return aof.Replay(filepath.Join(cfg.DataDir, "appendonly.log"), func(r aof.Record) error {
		switch r.Op {
		case aof.OpSet:
			return backend.Put(r.Key, storage.Entry{Value: r.Value, ExpiresAt: r.ExpiresAt})
		case aof.OpDel:
			_, err := backend.Delete(r.Key)
			return err
		case aof.OpExpire:
			e, ok, err := backend.Get(r.Key)
			if err != nil || !ok {
				return err
			}
			e.ExpiresAt = r.ExpiresAt
			return backend.Put(r.Key, e)
		case aof.OpPersist:
			e, ok, err := backend.Get(r.Key)
			if err != nil || !ok {
				return err
			}
			e.ExpiresAt = 0
			return backend.Put(r.Key, e)
		case aof.OpClear:
			return backend.Clear()
		case aof.OpCRDTMerge:
			raw, err := keyspace.EncodeCRDTMerge(r.Merge)
			if err != nil {
				return err
			}
			return backend.Put(r.Key, storage.Entry{Value: raw})
		}
		return nil
	}, func(line string, err error) {
		logger.Warn("skipping malformed append-log record", "line", line, "err", err)
	})
}
