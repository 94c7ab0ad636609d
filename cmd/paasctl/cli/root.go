// Package cli implements paasctl, the operator command line for launchpad.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lyzr/launchpad/cmd/api/container"
	"github.com/lyzr/launchpad/common/bootstrap"
	"github.com/lyzr/launchpad/common/models"
)

var rootCMD = &cobra.Command{
	Use:           "paasctl",
	Short:         "launchpad operator tool",
	Long:          `Operate launchpad deployments, builds and the gateway specification cache.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("config"); path != "" {
			return os.Setenv("CONFIG_FILE", path)
		}
		return nil
	},
}

func init() {
	rootCMD.PersistentFlags().StringP("config", "c", "", "config file path (overrides CONFIG_FILE)")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCMD.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withContainer bootstraps the same services the api runs and hands them to fn
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *container.Container) error) error {
	ctx := cmd.Context()

	components, err := bootstrap.Setup(ctx, "paasctl")
	if err != nil {
		return err
	}
	defer components.Shutdown(context.Background())

	c, err := container.NewContainer(components)
	if err != nil {
		return err
	}
	return fn(ctx, c)
}

// resolveApp accepts an app id or slug
func resolveApp(ctx context.Context, c *container.Container, ref string) (*models.App, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return c.AppRepo.GetByID(ctx, id)
	}
	return c.AppRepo.GetBySlug(ctx, ref)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
