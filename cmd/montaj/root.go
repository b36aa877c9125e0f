package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "montaj",
		Short:         "Burn Arabic subtitles into video from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newRenderCommand(&verbose))
	rootCmd.AddCommand(newProbeCommand(&verbose))
	rootCmd.AddCommand(newCuesCommand(&verbose))
	rootCmd.AddCommand(newFontsCommand(&verbose))
	rootCmd.AddCommand(newFetchCommand(&verbose))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
