package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kolkov/threadstack/config"
	"github.com/kolkov/threadstack/internal/collector"
	"github.com/kolkov/threadstack/internal/sigcollect"
	"github.com/kolkov/threadstack/internal/stacktrace"
)

func newDumpCommand(v *viper.Viper, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <tid>",
		Short: "Collect and print one thread's symbolized stack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tid, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}

			cfg := config.Load(v)
			if err := sigcollect.SetStackTraceSignal(cfg.Signal); err != nil {
				logger.Warn("signal install failed", zap.Int("signal", cfg.Signal), zap.Error(err))
				return err
			}

			var stack stacktrace.Record
			var c collector.Collector
			if err := c.TriggerAsync(tid, &stack); err != nil {
				logger.Warn("trigger failed", zap.Int64("tid", tid), zap.Error(err))
				return err
			}
			if err := c.AwaitCollection(time.Now().Add(cfg.Deadline)); err != nil {
				logger.Warn("collection failed", zap.Int64("tid", tid), zap.Error(err))
				return err
			}

			cmd.Println(stack.Symbolized())
			return nil
		},
	}
	return cmd
}
