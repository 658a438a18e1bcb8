// Package hubcli implements the syncstore-hub command, which serves namespaces from a SQLite
// database and relays broadcast updates between replicas.
package hubcli

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
)

// NewRootCommand creates the syncstore-hub command tree. Settings come from SYNCSTORE_HUB_*
// environment variables and may be overridden by flags.
func NewRootCommand() *cobra.Command {
	cfg, envErr := LoadConfig()

	cmd := &cobra.Command{
		Use:   "syncstore-hub",
		Short: "Shared backend and broadcast hub for syncstore replicas",
		Long: `syncstore-hub keeps syncstore namespaces in a SQLite database and serves them over HTTP,
and relays store updates between replicas as a server-sent event stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			_, err := logLevelFromName(cfg.LogLevel)
			return err
		},
	}

	cmd.PersistentFlags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "path of the SQLite database")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn, error or none")

	cmd.AddCommand(NewServeCommand(&cfg))
	cmd.AddCommand(NewShowCommand(&cfg))
	return cmd
}

func makeLoggers(cmd *cobra.Command, cfg *Config) ldlog.Loggers {
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
	level, _ := logLevelFromName(cfg.LogLevel)
	loggers.SetMinLevel(level)
	return loggers
}
