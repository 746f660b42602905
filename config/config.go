// Package config binds the subsystem's tunables (signal number,
// per-thread collection deadline, thread-name capture) to flags and the
// environment, via github.com/spf13/viper, per SPEC_FULL.md §9. No config
// file is read. Defaults match spec.md exactly when nothing overrides
// them.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kolkov/threadstack/internal/sigcollect"
)

// Keys used both as Viper keys and as flag names, so `stackdump --signal=40` and STACKDUMP_SIGNAL=40 bind to the
// same setting.
const (
	KeySignal             = "signal"
	KeyDeadline           = "deadline"
	KeyCaptureThreadNames = "capture-thread-names"
	KeyMetricsAddr        = "metrics-addr"
)

// Config is the resolved, typed view of the bound settings.
type Config struct {
	// Signal is the real-time signal number used for collection.
	Signal int

	// Deadline is the wait `stackdump dump` allows its collection.
	// snapshot.SnapshotAll and collector.GetThreadStack do not read it;
	// both use a fixed one-second deadline.
	Deadline time.Duration

	// CaptureThreadNames toggles the comm-file read overlapped with
	// in-flight signals during a snapshot.
	CaptureThreadNames bool

	// MetricsAddr, if non-empty, is the address cmd/stackdump serves its
	// Prometheus registry on (e.g. ":9090"). Empty disables the listener.
	MetricsAddr string
}

// BindFlags registers this package's settings on fs, so a cobra command
// can expose them as `--signal`, `--deadline`, `--capture-thread-names`.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	fs.Int(KeySignal, sigcollect.DefaultSignum, "real-time signal number used for stack collection")
	fs.Duration(KeyDeadline, time.Second, "per-thread deadline for a collection to complete")
	fs.Bool(KeyCaptureThreadNames, true, "read each thread's /proc comm name during a snapshot")
	fs.String(KeyMetricsAddr, "", "address to serve Prometheus metrics on (empty disables)")
	return v.BindPFlags(fs)
}

// Load resolves the bound settings from v (flags, then environment via
// SetEnvPrefix/AutomaticEnv, then config file, then the defaults
// registered in BindFlags, per Viper's own precedence order).
func Load(v *viper.Viper) Config {
	return Config{
		Signal:             v.GetInt(KeySignal),
		Deadline:           v.GetDuration(KeyDeadline),
		CaptureThreadNames: v.GetBool(KeyCaptureThreadNames),
		MetricsAddr:        v.GetString(KeyMetricsAddr),
	}
}

// New returns a Viper instance preconfigured the way this module expects
// to be embedded: environment variables prefixed STACKDUMP_, dashes in
// keys translated to underscores (STACKDUMP_CAPTURE_THREAD_NAMES).
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("stackdump")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}
