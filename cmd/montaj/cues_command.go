package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"montaj/internal/arabic"
	"montaj/internal/subtitle"
)

func newCuesCommand(verbose *bool) *cobra.Command {
	var limit int
	var raw bool
	var normalize bool

	cmd := &cobra.Command{
		Use:   "cues <file>",
		Short: "Parse a subtitle file and list its cues with shaped previews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := loadConfigAndLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			doc, err := subtitle.Open(args[0])
			if err != nil {
				return err
			}

			shaper := arabic.NewShaper(logger, arabic.Options{Normalize: normalize})
			rows := make([][]string, 0, len(doc.Cues))
			for _, cue := range doc.Cues {
				if limit > 0 && len(rows) == limit {
					break
				}
				text := strings.ReplaceAll(cue.Text, "\n", " ⏎ ")
				if !raw {
					text = shaper.Shape(text).Display
				}
				rows = append(rows, []string{
					strconv.Itoa(cue.Index),
					formatTimestamp(cue.Start),
					formatTimestamp(cue.End),
					truncateRunes(text, 60),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Start", "End", "Text"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%s, %d cues\n", doc.Format, len(doc.Cues))

			if len(doc.Warnings) > 0 {
				fmt.Fprintf(out, "\n%d warnings:\n", len(doc.Warnings))
				for _, w := range doc.Warnings {
					fmt.Fprintf(out, "  - %s\n", w)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many cues (0 = all)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print logical order text without shaping")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Fold alef, teh marbuta and yeh variants, as search surfaces do")

	return cmd
}
