// Copyright 2026 The Agent Loop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a Config from a YAML file at path, applying
// SetDefaults. A max_turns or run_timeout the file leaves out stays 0,
// which SetDefaults keeps as a literal zero rather than defaulting.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watcher reloads a Config from disk whenever its backing file
// changes, so long-lived hosts can pick up tuning changes (retry
// policy, budgets) without a restart. A reload that fails validation
// is logged and discarded; the previously loaded Config keeps serving.
type Watcher struct {
	path    string
	current atomic.Pointer[Config]
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	onLoad  []func(*Config)
}

// NewWatcher loads path once, then begins watching it for changes.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("config: watching %q: %w", path, err)
	}

	w := &Watcher{path: path, watcher: fsw}
	w.current.Store(cfg)
	go w.run()
	return w, nil
}

// Current returns the most recently successfully loaded Config.
func (w *Watcher) Current() *Config {
	return w.current.Load()
}

// OnReload registers fn to be called with the newly loaded Config
// every time a valid reload occurs.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onLoad = append(w.onLoad, fn)
}

// Close stops watching the file.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				slog.Error("config: reload failed, keeping previous configuration", "path", w.path, "error", err)
				continue
			}
			w.current.Store(cfg)
			w.mu.Lock()
			callbacks := append([]func(*Config){}, w.onLoad...)
			w.mu.Unlock()
			for _, fn := range callbacks {
				fn(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("config: watcher error", "path", w.path, "error", err)
		}
	}
}
