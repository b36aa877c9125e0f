package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"montaj/internal/media"
)

func newProbeCommand(verbose *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <file>",
		Short: "Show media metadata for a video or audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("probe %s: %w", path, err)
			}

			cfg, logger, err := loadConfigAndLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			prober := media.NewProber(logger, cfg.FFprobePath)
			info := prober.Probe(cmd.Context(), path)

			rows := [][]string{
				{"File", path},
				{"Duration", formatSeconds(info.Duration)},
				{"Size", formatBytes(info.ByteSize)},
				{"Probe source", string(info.Source)},
			}
			if info.HasVideo {
				rows = append(rows,
					[]string{"Video", fmt.Sprintf("%dx%d %s", info.Width, info.Height, info.VideoCodec)},
					[]string{"FPS", strconv.FormatFloat(info.FPS, 'f', -1, 64)},
				)
			}
			if info.HasAudio {
				audio := info.AudioCodec
				if info.SampleRate > 0 {
					audio = fmt.Sprintf("%s %d Hz, %d ch", info.AudioCodec, info.SampleRate, info.Channels)
				}
				rows = append(rows, []string{"Audio", audio})
			}
			if !info.HasVideo && !info.HasAudio {
				rows = append(rows, []string{"Streams", "none detected"})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}
