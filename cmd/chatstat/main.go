package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatstat",
		Short: "Chat community activity store",
		Long:  "chatstat records per user hourly message and reaction counts per community and answers range queries over them.",
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceUsage = true

	root.AddCommand(newServeCmd(), newCollectCmd())
	return root
}
