package hubcli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapshelf/syncstore/internal/wire"
	"github.com/snapshelf/syncstore/ldsqlite"
)

// NewShowCommand creates the command that prints the stored values of a namespace as JSON.
func NewShowCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show <namespace>",
		Short: "Print the values stored in a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ldsqlite.Open(cfg.DBPath, args[0], ldsqlite.DefaultBusyTimeoutMillis)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			keys, err := db.Keys(cmd.Context())
			if err != nil {
				return err
			}
			values, err := db.BulkRead(cmd.Context(), keys)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(wire.EncodeValues(values)))
			return err
		},
	}
}
