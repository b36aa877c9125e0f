package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"montaj/internal/media"
)

func newFetchCommand(verbose *bool) *cobra.Command {
	var (
		dir     string
		quality string
		lang    string
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Download a video (and subtitles if available) with yt-dlp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfigAndLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if cfg.YtdlpPath == "" {
				return fmt.Errorf("URL fetch is disabled (YTDLP_PATH is empty)")
			}

			fetcher := media.NewFetcher(logger, cfg.YtdlpPath)
			res, err := fetcher.Fetch(cmd.Context(), args[0], dir, quality, lang)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "video: %s\n", res.VideoPath)
			if res.SubtitlePath != "" {
				fmt.Fprintf(out, "subtitles: %s\n", res.SubtitlePath)
			} else if lang != "" {
				fmt.Fprintf(out, "subtitles: none available for %q\n", lang)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to download into")
	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Cap video height, e.g. 720p (default: best)")
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Also fetch subtitles in this language, e.g. ar")

	return cmd
}
