package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lyzr/launchpad/cmd/api/container"
)

var specCMD = &cobra.Command{
	Use:   "spec",
	Short: "manage the gateway specification cache",
}

var specPublishCMD = &cobra.Command{
	Use:   "publish <app>",
	Short: "resolve an app and overwrite its cached specification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			app, err := resolveApp(ctx, c, args[0])
			if err != nil {
				return fmt.Errorf("app %s: %w", args[0], err)
			}
			if err := c.SpecificationService.Publish(ctx, app.Slug); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", app.Slug)
			return nil
		})
	},
}

var specInvalidateCMD = &cobra.Command{
	Use:   "invalidate <slug>",
	Short: "drop an app's cached specification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			if err := c.SpecificationService.Invalidate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", args[0])
			return nil
		})
	},
}

var specGetCMD = &cobra.Command{
	Use:   "get <slug>",
	Short: "print an app's cached specification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			data, ok, err := c.SpecificationService.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no cached specification for %s", args[0])
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		})
	},
}

func init() {
	specCMD.AddCommand(specPublishCMD, specInvalidateCMD, specGetCMD)
	rootCMD.AddCommand(specCMD)
}
