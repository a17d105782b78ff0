// Package main provides the cmstools binary: a metadata-driven
// administration API for relational business databases.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cmstools-dev/cmstools/internal/app"
	"github.com/cmstools-dev/cmstools/internal/buildinfo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "cmstools",
		Short:   "Metadata-driven administration API for relational databases",
		Version: buildinfo.Version,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the administration API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, configPath)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the metadata database and seed the bootstrap operator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Migrate(cmd.Context(), configPath)
		},
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
