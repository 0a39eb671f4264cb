package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/propbag/internal/store"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize propbag storage",
		Long:  "Create the configuration directory and config.yaml, then initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return sysError(err)
			}

			// opening creates the database, file or nothing at all for s3
			err = a.withStore(cmd.Context(), func(store.Store) error { return nil })
			if err != nil {
				return err
			}

			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"backend":  cfg.Backend,
					"data_dir": cfg.DataDir,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "propbag initialized (%s backend)\n", cfg.Backend)
			return nil
		},
	}
}
