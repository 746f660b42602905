package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kolkov/threadstack/config"
	"github.com/kolkov/threadstack/internal/sigcollect"
	"github.com/kolkov/threadstack/snapshot"
)

func newSnapshotCommand(v *viper.Viper, logger *zap.Logger) *cobra.Command {
	var pprofOut string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Collect every thread's stack and print grouped results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(v)
			if err := sigcollect.SetStackTraceSignal(cfg.Signal); err != nil {
				logger.Warn("signal install failed", zap.Int("signal", cfg.Signal), zap.Error(err))
				return err
			}

			s := snapshot.New()
			s.CaptureThreadNames = cfg.CaptureThreadNames
			if err := s.SnapshotAll(cmd.Context()); err != nil {
				logger.Warn("snapshot failed", zap.Error(err))
				return err
			}

			groupIdx := 0
			s.VisitGroups(func(group []snapshot.ThreadInfo) {
				groupIdx++
				cmd.Printf("--- group %d (%d threads) ---\n", groupIdx, len(group))
				for _, t := range group {
					if t.Err != nil {
						cmd.Printf("  tid=%d error=%v\n", t.TID, t.Err)
						continue
					}
					cmd.Printf("  tid=%d name=%s\n", t.TID, t.ThreadName)
				}
				if group[0].Err == nil {
					cmd.Println(group[0].Stack.Symbolized())
				}
			})
			cmd.Printf("%d threads failed to respond\n", s.NumFailed())

			if pprofOut != "" {
				if err := writePprof(s, pprofOut); err != nil {
					return fmt.Errorf("writing pprof profile: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pprofOut, "pprof-out", "", "write the snapshot as a gzipped pprof profile to this path")
	return cmd
}
