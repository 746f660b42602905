package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kolkov/threadstack/config"
	"github.com/kolkov/threadstack/internal/sigcollect"
)

// newListenCommand installs the collection signal and blocks until
// interrupted, printing one line at startup so an operator (or a test
// harness) can confirm the handler installed cleanly. Collection only
// ever targets threads of the requesting process, so a `stackdump dump`
// run from another process cannot reach this one.
func newListenCommand(v *viper.Viper, logger *zap.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Install the collection signal and idle until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load(v)
			if err := sigcollect.SetStackTraceSignal(cfg.Signal); err != nil {
				logger.Warn("signal install failed", zap.Int("signal", cfg.Signal), zap.Error(err))
				return err
			}

			cmd.Printf("listening for signal %d on pid %d; Ctrl-C to exit\n", cfg.Signal, os.Getpid())

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			<-stop
			return nil
		},
	}
	return cmd
}
