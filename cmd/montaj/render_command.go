package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"montaj/internal/arabic"
	"montaj/internal/config"
	"montaj/internal/fonts"
	"montaj/internal/media"
	"montaj/internal/models"
	"montaj/internal/pipeline"
	"montaj/internal/render"
	"montaj/internal/uploads"
	"montaj/internal/workspace"
)

func newRenderCommand(verbose *bool) *cobra.Command {
	def := models.DefaultStyle()

	var (
		videoPath string
		subPath   string
		audioPath string
		output    string

		preset          string
		quality         string
		preview         bool
		targetHeight    int
		normalizeArabic bool

		subtitleOffset float64
		audioOffset    float64
		audioVolume    float64
		keepVideoAudio bool
		loopAudio      bool

		fontFamily        string
		fontSize          int
		textColor         string
		strokeColor       string
		strokeWidth       int
		shadowColor       string
		shadowOffsetX     int
		shadowOffsetY     int
		shadowBlur        int
		backgroundColor   string
		backgroundOpacity float64
		marginVertical    int
		marginHorizontal  int
		wrapWidth         int
		alignment         string
		position          string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Burn subtitles into a video in one shot",
		Long: `Render subtitles into a video without the HTTP server. The style
starts from --preset (or the default) and individual flags override
single fields. Output quality, audio replacement and timing offsets
match the web API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if videoPath == "" {
				return fmt.Errorf("--video is required")
			}
			if subPath == "" {
				return fmt.Errorf("--subtitles is required")
			}
			for _, path := range []string{videoPath, subPath, audioPath} {
				if path == "" {
					continue
				}
				if _, err := os.Stat(path); err != nil {
					return err
				}
			}

			cfg, logger, err := loadConfigAndLogger(*verbose)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			scratch, err := os.MkdirTemp("", "montaj_")
			if err != nil {
				return fmt.Errorf("create scratch dir: %w", err)
			}
			defer os.RemoveAll(scratch)

			ws, err := workspace.New(logger, scratch)
			if err != nil {
				return err
			}
			fontReg, err := fonts.NewRegistry(logger, cfg.FontsDir)
			if err != nil {
				return err
			}
			presets, err := config.LoadPresets(cfg.PresetsFile)
			if err != nil {
				return err
			}

			reg := uploads.NewRegistry()
			videoID, err := addLocalFile(reg, models.UploadKindVideo, videoPath)
			if err != nil {
				return err
			}
			subID, err := addLocalFile(reg, models.UploadKindSubtitle, subPath)
			if err != nil {
				return err
			}
			var audioID *uuid.UUID
			if audioPath != "" {
				id, err := addLocalFile(reg, models.UploadKindAudio, audioPath)
				if err != nil {
					return err
				}
				audioID = &id
			}

			changed := cmd.Flags().Changed
			overrides := &models.StyleOverrides{}
			anyOverride := false
			set := func(name string, apply func()) {
				if changed(name) {
					apply()
					anyOverride = true
				}
			}
			set("font", func() { overrides.FontFamily = &fontFamily })
			set("font-size", func() { overrides.FontSize = &fontSize })
			set("text-color", func() { overrides.TextColor = &textColor })
			set("stroke-color", func() { overrides.StrokeColor = &strokeColor })
			set("stroke-width", func() { overrides.StrokeWidth = &strokeWidth })
			set("shadow-color", func() { overrides.ShadowColor = &shadowColor })
			set("shadow-offset-x", func() { overrides.ShadowOffsetX = &shadowOffsetX })
			set("shadow-offset-y", func() { overrides.ShadowOffsetY = &shadowOffsetY })
			set("shadow-blur", func() { overrides.ShadowBlur = &shadowBlur })
			set("background-color", func() { overrides.BackgroundColor = &backgroundColor })
			set("background-opacity", func() { overrides.BackgroundOpacity = &backgroundOpacity })
			set("margin-vertical", func() { overrides.MarginVertical = &marginVertical })
			set("margin-horizontal", func() { overrides.MarginHorizontal = &marginHorizontal })
			set("wrap-width", func() { overrides.WrapWidth = &wrapWidth })
			set("alignment", func() { a := models.Alignment(alignment); overrides.Alignment = &a })
			set("position", func() { p := models.Position(position); overrides.Position = &p })
			if !anyOverride {
				overrides = nil
			}

			if output == "" {
				stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
				output = stem + "_subtitled.mp4"
			}

			req := models.RenderRequest{
				VideoID:         videoID,
				SubtitleID:      subID,
				AudioID:         audioID,
				Preset:          preset,
				Style:           overrides,
				Quality:         models.Quality(quality),
				Preview:         preview,
				NormalizeArabic: normalizeArabic,
				SubtitleOffset:  subtitleOffset,
				AudioOffset:     audioOffset,
				KeepVideoAudio:  keepVideoAudio,
				LoopAudio:       loopAudio,
				TargetHeight:    targetHeight,
				OutputName:      filepath.Base(output),
			}
			if changed("audio-volume") {
				req.AudioVolume = &audioVolume
			}
			if err := req.Validate(); err != nil {
				return err
			}

			shaper := arabic.NewShaper(logger, arabic.Options{})
			renderer := render.NewRenderer(logger, shaper, fontReg)
			prober := media.NewProber(logger, cfg.FFprobePath)
			compositor := media.NewCompositor(logger, cfg.FFmpegPath)
			pipe := pipeline.New(logger, reg, ws, renderer, prober, compositor, presets, cfg.RenderWorkers)

			colorize := shouldColorize(os.Stderr)
			stage := func(s string) {
				line := "→ " + s
				if colorize {
					line = ansiBlue + line + ansiReset
				}
				fmt.Fprintln(cmd.ErrOrStderr(), line)
			}

			start := time.Now()
			job := models.Job{ID: uuid.New(), Request: req, OutputName: req.OutputName}
			outPath, err := pipe.Run(cmd.Context(), job, stage)
			if err != nil {
				return err
			}
			if err := moveFile(outPath, output); err != nil {
				return err
			}

			size := int64(0)
			if fi, err := os.Stat(output); err == nil {
				size = fi.Size()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s) in %s\n",
				output, formatBytes(size), time.Since(start).Round(100*time.Millisecond))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&videoPath, "video", "i", "", "Input video file (required)")
	flags.StringVarP(&subPath, "subtitles", "s", "", "Subtitle file (required)")
	flags.StringVarP(&audioPath, "audio", "a", "", "Replacement audio track")
	flags.StringVarP(&output, "output", "o", "", "Output file (default: <video>_subtitled.mp4)")

	flags.StringVar(&preset, "preset", "", "Style preset name")
	flags.StringVarP(&quality, "quality", "q", "", "Encode quality: high, medium, fast or preview")
	flags.BoolVar(&preview, "preview", false, "Render only the opening seconds")
	flags.IntVar(&targetHeight, "target-height", 0, "Scale output to this height (0 = keep source)")
	flags.BoolVar(&normalizeArabic, "normalize-arabic", false, "Fold alef, teh marbuta and yeh variants before shaping")

	flags.Float64Var(&subtitleOffset, "subtitle-offset", 0, "Shift subtitles by this many seconds")
	flags.Float64Var(&audioOffset, "audio-offset", 0, "Delay replacement audio by this many seconds")
	flags.Float64Var(&audioVolume, "audio-volume", 1.0, "Replacement audio volume 0.0-2.0")
	flags.BoolVar(&keepVideoAudio, "keep-video-audio", false, "Mix the source audio under the replacement track")
	flags.BoolVar(&loopAudio, "loop-audio", false, "Loop the replacement audio to cover the video")

	flags.StringVar(&fontFamily, "font", def.FontFamily, "Font family")
	flags.IntVar(&fontSize, "font-size", def.FontSize, "Font size in pixels (16-72)")
	flags.StringVar(&textColor, "text-color", def.TextColor, "Text color, #RRGGBB")
	flags.StringVar(&strokeColor, "stroke-color", def.StrokeColor, "Outline color, #RRGGBB")
	flags.IntVar(&strokeWidth, "stroke-width", def.StrokeWidth, "Outline width in pixels (0-5)")
	flags.StringVar(&shadowColor, "shadow-color", def.ShadowColor, "Shadow color, #RRGGBB")
	flags.IntVar(&shadowOffsetX, "shadow-offset-x", def.ShadowOffsetX, "Shadow x offset in pixels")
	flags.IntVar(&shadowOffsetY, "shadow-offset-y", def.ShadowOffsetY, "Shadow y offset in pixels")
	flags.IntVar(&shadowBlur, "shadow-blur", def.ShadowBlur, "Shadow blur radius in pixels")
	flags.StringVar(&backgroundColor, "background-color", def.BackgroundColor, "Background box color, #RRGGBB")
	flags.Float64Var(&backgroundOpacity, "background-opacity", def.BackgroundOpacity, "Background box opacity 0.0-1.0")
	flags.IntVar(&marginVertical, "margin-vertical", def.MarginVertical, "Distance from the top/bottom edge in pixels")
	flags.IntVar(&marginHorizontal, "margin-horizontal", def.MarginHorizontal, "Distance from the side edges in pixels")
	flags.IntVar(&wrapWidth, "wrap-width", def.WrapWidth, "Wrap lines at this many characters (20-80)")
	flags.StringVar(&alignment, "alignment", string(def.Alignment), "Text alignment: left, center or right")
	flags.StringVar(&position, "position", string(def.Position), "Block position: top, center or bottom")

	return cmd
}

func addLocalFile(reg *uploads.Registry, kind models.UploadKind, path string) (uuid.UUID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	up := models.Upload{
		ID:        id,
		Kind:      kind,
		Filename:  filepath.Base(abs),
		Path:      abs,
		CreatedAt: time.Now().UTC(),
	}
	if fi, err := os.Stat(abs); err == nil {
		up.ByteSize = fi.Size()
	}
	reg.Add(up)
	return id, nil
}

// moveFile renames when possible and falls back to copying, since the
// scratch dir and the destination often sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
