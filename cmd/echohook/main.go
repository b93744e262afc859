package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	obs "github.com/BRAVO68WEB/echohook/internal/infrastructure/observability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	rootCmd := &cobra.Command{
		Use:          "echohook",
		Short:        "Ephemeral webhook capture relay",
		Long:         "echohook issues short-lived capture endpoints and streams every call made to them to connected viewers.",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	// serve is the default command.
	rootCmd.Flags().AddFlagSet(serve.Flags())
	rootCmd.AddCommand(serve)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), obs.VersionString())
		},
	})
	rootCmd.AddCommand(newHealthcheckCmd())
	return rootCmd
}
