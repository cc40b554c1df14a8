package main

import (
	"chatstat/internal/di"
	"chatstat/internal/structures"
	"fmt"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	flags := &structures.CliFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP ingestion and query server",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := di.InitApp(flags)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "config.yaml", "Path to the YAML config file")
	cmd.Flags().BoolVarP(&flags.DebugMode, "debug", "d", false, "Mirror logs to stderr")
	return cmd
}
