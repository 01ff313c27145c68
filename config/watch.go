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

package config

import (
	"github.com/fsnotify/fsnotify"
)

// WatchTLSFiles watches the configured cert/key pair and invokes
// onChange whenever either file is rewritten (e.g. a cert renewal),
// so the listener can reload without a restart. It returns a stop
// function; callers should defer it during shutdown.
func (c *Config) WatchTLSFiles(onChange func()) (stop func(), err error) {
	c.mu.RLock()
	enabled := c.EnableTLS
	cert, key := c.TLSCertFile, c.TLSKeyFile
	c.mu.RUnlock()

	if !enabled || cert == "" || key == "" {
		return func() {}, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(cert); err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(key); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					onChange()
				}
			case <-watcher.Errors:
				// errors are discarded; the watcher keeps running
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
