// Package sysutil holds process-level setup shared by the server binary:
// global log configuration, build version discovery and env flag parsing.
package sysutil

import (
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel sets the global zerolog level from a name (debug, info, warn,
// error, fatal, panic; "warning" is accepted). Unknown or empty names mean
// info. It returns the level applied.
func SetLogLevel(lvl string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(lvl))
	if name == "warning" {
		name = "warn"
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" || level == zerolog.NoLevel || level == zerolog.TraceLevel || level == zerolog.Disabled {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return level
}

// LogOptions configures ConfigureLogging.
type LogOptions struct {
	Level   string
	Pretty  bool   // human-readable console output instead of JSON lines
	Service string // added to every event as "service"
	Out     io.Writer
}

// ConfigureLogging installs the global logger used by the server and returns
// it. Out defaults to stderr.
func ConfigureLogging(o LogOptions) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLogLevel(o.Level)

	out := o.Out
	if out == nil {
		out = os.Stderr
	}
	if o.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	ctx := zerolog.New(out).With().Timestamp()
	if o.Service != "" {
		ctx = ctx.Str("service", o.Service)
	}
	log.Logger = ctx.Logger()
	return log.Logger
}

// IsTruthy reports whether an env value means "on": 1, true, yes, y, on.
func IsTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// BuildVersion resolves the version reported in logs and traces: APP_VERSION,
// then the linker-provided value, then the module version recorded by
// `go install`, then "dev".
func BuildVersion(linked string) string {
	var mod string
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "(devel)" {
		mod = bi.Main.Version
	}
	if linked == "dev" {
		linked = ""
	}
	return FirstNonEmpty(os.Getenv("APP_VERSION"), linked, mod, "dev")
}
