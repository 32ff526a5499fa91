package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvVar is the environment variable consulted for verbosity overrides,
// following the same mini-grammar as Rust's RUST_LOG: either a bare
// level ("debug") or a comma-separated list of target=level pairs
// ("duskrelay=debug,socks=warn"), optionally mixed with one bare level
// token that sets the default.
const EnvVar = "DUSKRELAY_LOG"

var (
	overlayOnce    sync.Once
	defaultLevel   slog.Level
	targetLevels   map[string]slog.Level
	baseLogger     *slog.Logger
	baseLoggerOnce sync.Once
)

func loadOverlay() {
	defaultLevel = slog.LevelInfo
	targetLevels = make(map[string]slog.Level)

	spec := os.Getenv(EnvVar)
	if spec == "" {
		return
	}
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if name, level, ok := strings.Cut(tok, "="); ok {
			targetLevels[name] = parseLevel(level)
			continue
		}
		defaultLevel = parseLevel(tok)
	}
}

// For returns a logger scoped to name, whose level floor honors any
// per-target override in DUSKRELAY_LOG, falling back to the bare
// default level or to slog's process-wide default logger if the
// environment variable is unset.
func For(name string) *slog.Logger {
	overlayOnce.Do(loadOverlay)

	level := defaultLevel
	if l, ok := targetLevels[name]; ok {
		level = l
	}

	baseLoggerOnce.Do(func() {
		baseLogger = slog.Default()
	})

	return slog.New(levelFloorHandler{next: baseLogger.Handler(), floor: level}).With(slog.String("target", name))
}

// levelFloorHandler wraps a slog.Handler, dropping records below floor
// regardless of the wrapped handler's own configured level.
type levelFloorHandler struct {
	next  slog.Handler
	floor slog.Level
}

func (h levelFloorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.floor
}

func (h levelFloorHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h levelFloorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return levelFloorHandler{next: h.next.WithAttrs(attrs), floor: h.floor}
}

func (h levelFloorHandler) WithGroup(name string) slog.Handler {
	return levelFloorHandler{next: h.next.WithGroup(name), floor: h.floor}
}
