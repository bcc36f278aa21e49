// Package bdjlog sets up the structured logger every bdj4go process uses,
// exactly the way the teacher's main.go does: a JSON slog.Handler
// installed as the default logger, with a debug-mask flag mapped onto
// slog levels through a small fixed lookup rather than a dynamic registry.
package bdjlog

import (
	"log/slog"
	"os"

	"github.com/bdj4go/bdj4/internal/bus/route"
)

// levelForMask is the fixed lookup the --debug MASK flag consults. The
// mask value itself indexes the table (values past the end use the last
// entry), matching the route/message tables elsewhere in this codebase:
// never built dynamically.
var levelForMask = [...]slog.Level{
	0: slog.LevelWarn,
	1: slog.LevelInfo,
	2: slog.LevelInfo,
	3: slog.LevelDebug,
}

// LevelForMask maps a debug bitmask onto a slog.Level via levelForMask,
// clamping to the table's range.
func LevelForMask(mask int) slog.Level {
	if mask < 0 {
		mask = 0
	}
	if mask >= len(levelForMask) {
		mask = len(levelForMask) - 1
	}
	return levelForMask[mask]
}

// Setup installs a JSON-handler slog.Logger as the process-wide default,
// tagging every record with this process's route and profile so logs from
// a whole fleet can be told apart once aggregated.
func Setup(r route.Route, profile int, debugMask int) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: LevelForMask(debugMask),
	})
	logger := slog.New(handler).With(
		"route", r.Name(),
		"profile", profile,
		"pid", os.Getpid(),
	)
	slog.SetDefault(logger)
	return logger
}
