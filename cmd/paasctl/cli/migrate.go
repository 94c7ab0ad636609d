package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lyzr/launchpad/common/bootstrap"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "apply database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		components, err := bootstrap.Setup(cmd.Context(), "paasctl",
			bootstrap.WithoutRedis(),
			bootstrap.WithoutQueue(),
			bootstrap.WithoutCache(),
			bootstrap.WithoutStorage(),
		)
		if err != nil {
			return err
		}
		defer components.Shutdown(context.Background())

		if err := components.DB.Migrate(cmd.Context()); err != nil {
			return err
		}
		components.Logger.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCMD.AddCommand(migrateCMD)
}
