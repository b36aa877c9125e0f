package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"montaj/internal/fonts"
)

func newFontsCommand(verbose *bool) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "fonts",
		Short: "List registered font families and their Arabic coverage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if dir == "" {
				dir = cfg.FontsDir
			}
			reg, err := fonts.NewRegistry(logger, dir)
			if err != nil {
				return err
			}

			var rows [][]string
			for _, f := range reg.List() {
				arabicMark := "no"
				if f.Arabic {
					arabicMark = "yes"
				}
				path := f.Path
				if path == "" {
					path = "(built-in)"
				}
				rows = append(rows, []string{f.Family, arabicMark, path})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Family", "Arabic", "File"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Font directory (default: FONTS_DIR)")

	return cmd
}
