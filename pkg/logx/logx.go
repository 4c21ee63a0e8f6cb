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

// Package logx installs a filtering slog.Handler so that, below debug
// level, only log records whose call site lives inside this module are
// shown; every record is shown at debug. This keeps a host's default
// log level quiet about third-party library chatter (MCP clients,
// SQLite driver warnings, ...) while still surfacing everything this
// engine itself logs.
package logx

import (
	"context"
	"log/slog"
	"runtime"
	"strings"
)

const modulePrefix = "github.com/tessera-ai/agentloop"

// ParseLevel converts a case-insensitive level name to a slog.Level,
// defaulting to Info for unrecognized input.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// filteringHandler wraps another Handler and suppresses records whose
// call site is outside this module, unless minLevel is debug or the
// record's own level is at least warn (warnings/errors from a
// dependency are still worth surfacing).
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

// New wraps handler with the module-local filtering policy at minLevel.
func New(handler slog.Handler, minLevel slog.Level) slog.Handler {
	return &filteringHandler{handler: handler, minLevel: minLevel}
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.minLevel {
		return false
	}
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if record.Level >= slog.LevelWarn || h.isModuleCaller(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isModuleCaller(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	return strings.Contains(fn.Name(), modulePrefix)
}
