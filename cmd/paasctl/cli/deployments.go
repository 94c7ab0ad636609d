package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lyzr/launchpad/cmd/api/container"
)

var bootstrapCMD = &cobra.Command{
	Use:   "bootstrap",
	Short: "create an initial API deployment for every app without one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			report, err := c.SnapshotService.BootstrapMissingDeployments(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d apps failed", report.Failed, report.Processed)
			}
			return nil
		})
	},
}

var snapshotCMD = &cobra.Command{
	Use:   "snapshot <app>",
	Short: "snapshot an app's publishable routes into a new API deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			app, err := resolveApp(ctx, c, args[0])
			if err != nil {
				return fmt.Errorf("app %s: %w", args[0], err)
			}

			var name, description *string
			if cmd.Flags().Changed("name") {
				v, _ := cmd.Flags().GetString("name")
				name = &v
			}
			if cmd.Flags().Changed("description") {
				v, _ := cmd.Flags().GetString("description")
				description = &v
			}

			id, err := c.SnapshotService.CreateDeploymentSnapshot(ctx, app.ID, name, description)
			if err != nil {
				return err
			}

			if activate, _ := cmd.Flags().GetBool("activate"); activate {
				if _, err := c.SnapshotService.ActivateDeployment(ctx, app.ID, id); err != nil {
					return fmt.Errorf("activate %s: %w", id, err)
				}
			}

			files, err := c.SnapshotService.ListFiles(ctx, app.ID, id)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{
				"app":           app.Slug,
				"deployment_id": id,
				"files":         files,
			})
		})
	},
}

var activateCMD = &cobra.Command{
	Use:   "activate <app> <deployment-id>",
	Short: "make a ready deployment the app's active API deployment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deploymentID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid deployment id %q", args[1])
		}

		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			app, err := resolveApp(ctx, c, args[0])
			if err != nil {
				return fmt.Errorf("app %s: %w", args[0], err)
			}

			d, err := c.SnapshotService.ActivateDeployment(ctx, app.ID, deploymentID)
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		})
	},
}

var diffCMD = &cobra.Command{
	Use:   "diff <app> <from-deployment> <to-deployment>",
	Short: "compare the manifests and OpenAPI documents of two deployments",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid deployment id %q", args[1])
		}
		toID, err := uuid.Parse(args[2])
		if err != nil {
			return fmt.Errorf("invalid deployment id %q", args[2])
		}

		return withContainer(cmd, func(ctx context.Context, c *container.Container) error {
			app, err := resolveApp(ctx, c, args[0])
			if err != nil {
				return fmt.Errorf("app %s: %w", args[0], err)
			}

			diff, err := c.DiffService.Diff(ctx, app.ID, fromID, toID)
			if err != nil {
				return err
			}
			return printJSON(cmd, diff)
		})
	},
}

func init() {
	snapshotCMD.Flags().String("name", "", "deployment name")
	snapshotCMD.Flags().String("description", "", "deployment description")
	snapshotCMD.Flags().Bool("activate", false, "activate the deployment once created")

	rootCMD.AddCommand(bootstrapCMD, snapshotCMD, activateCMD, diffCMD)
}
