package hubcli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the command that runs the hub until it is interrupted.
func NewServeCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loggers := makeLoggers(cmd, cfg)
			server, err := NewServer(*cfg, loggers)
			if err != nil {
				return err
			}
			defer server.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx, cfg.Addr)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "address to listen on")
	cmd.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "value required in the Authorization header")
	cmd.Flags().IntVar(&cfg.ReplayLength, "replay-length", cfg.ReplayLength,
		"number of updates per channel kept for reconnecting replicas")
	cmd.Flags().DurationVar(&cfg.HeartbeatInterval, "heartbeat", cfg.HeartbeatInterval,
		"interval between keep-alive comments on open streams")
	return cmd
}
