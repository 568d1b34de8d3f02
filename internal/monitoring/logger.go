package monitoring

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = newConsoleLogger(os.Stderr, zerolog.InfoLevel, "gimbal")
)

func newConsoleLogger(w io.Writer, level zerolog.Level, app string) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", app).Logger()
}

// Logger returns the structured logger backing Logf and Debugf.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Configure replaces the structured logger with a console logger writing to
// w at the named level ("debug", "info", "warn", "error", "disabled").
func Configure(w io.Writer, level, app string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if level == "" {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	logger = newConsoleLogger(w, lvl, app)
	mu.Unlock()
	return nil
}

// Logf is the package-level diagnostic logger. It writes info-level records
// to the structured logger but may be replaced by SetLogger. Tests or
// production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	l := Logger()
	l.Info().Msgf(format, v...)
}

// Debugf logs per-frame detail that is only wanted at debug level.
var Debugf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	l := Logger()
	l.Debug().Msgf(format, v...)
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebugLogger replaces Debugf. Passing nil will set a no-op logger.
func SetDebugLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Debugf = func(string, ...interface{}) {}
		return
	}
	Debugf = f
}
