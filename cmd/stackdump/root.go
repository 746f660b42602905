package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolkov/threadstack/config"
	"github.com/kolkov/threadstack/internal/collector"
	"github.com/kolkov/threadstack/metrics"
	"github.com/kolkov/threadstack/snapshot"
)

func newRootCommand() *cobra.Command {
	v := config.New()

	root := &cobra.Command{
		Use:           "stackdump",
		Short:         "Collect call stacks from any thread in a running process",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	if err := config.BindFlags(root.PersistentFlags(), v); err != nil {
		// BindFlags only fails if the flag set already defines one of
		// these names, which cannot happen on a freshly-constructed
		// command; a panic here means a programming error, not bad input.
		panic(err)
	}

	logger := newLogger()

	// Every collector/snapshot call in this process reports through this
	// one registry, regardless of whether --metrics-addr ends up serving
	// it; registering unconditionally keeps `dump`/`snapshot`/`listen`
	// uniformly instrumented rather than only when scraped.
	reg := prometheus.NewRegistry()
	mc := metrics.NewCollectors(reg)
	collector.SetMetrics(mc)
	snapshot.SetMetrics(mc)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg := config.Load(v)
		if cfg.MetricsAddr == "" {
			return nil
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn("metrics listener stopped", zap.String("addr", cfg.MetricsAddr), zap.Error(err))
			}
		}()
		return nil
	}

	root.AddCommand(
		newDumpCommand(v, logger),
		newSnapshotCommand(v, logger),
		newListenCommand(v, logger),
	)
	return root
}

func newLogger() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails if stderr can't be opened for the
		// default config, which would make the whole process unusable
		// anyway; fall back to a no-op logger rather than crash.
		return zap.NewNop()
	}
	return logger
}
