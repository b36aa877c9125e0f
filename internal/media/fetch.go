package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"montaj/internal/subtitle"
)

// Fetcher shells out to yt-dlp to pull a remote video, and optionally its
// subtitle track, into a local directory.
type Fetcher struct {
	log     *zap.Logger
	binPath string
}

func NewFetcher(log *zap.Logger, binPath string) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	if binPath == "" {
		binPath = "yt-dlp"
	}
	return &Fetcher{log: log.Named("fetch"), binPath: binPath}
}

type FetchResult struct {
	VideoPath    string
	SubtitlePath string // empty when no subtitle was requested or found
}

// Fetch downloads url into destDir as source.mp4. quality caps the video
// height ("720" or "720p"); empty or "best" takes the best available.
// A non-empty subLang also requests that language's subtitles, manual or
// auto-generated, converted to SRT.
func (f *Fetcher) Fetch(ctx context.Context, url, destDir, quality, subLang string) (*FetchResult, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch: empty url")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("fetch: create dest dir: %w", err)
	}

	args := fetchArgs(url, destDir, quality, subLang)
	f.log.Info("fetching remote video", zap.String("url", url), zap.String("dir", destDir))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", f.binPath, err, tailLines(stderr.String(), 5))
	}

	videoPath := filepath.Join(destDir, "source.mp4")
	if _, err := os.Stat(videoPath); err != nil {
		// Merge can fall back to another container when mp4 is unavailable.
		matches, _ := filepath.Glob(filepath.Join(destDir, "source.*"))
		videoPath = firstVideo(matches)
		if videoPath == "" {
			return nil, fmt.Errorf("fetch: downloaded video not found in %s", destDir)
		}
	}

	result := &FetchResult{VideoPath: videoPath}
	if subLang != "" {
		sub, err := f.findSubtitle(destDir, subLang)
		if err != nil {
			f.log.Warn("subtitle not fetched", zap.String("lang", subLang), zap.Error(err))
		} else {
			result.SubtitlePath = sub
		}
	}
	return result, nil
}

func fetchArgs(url, destDir, quality, subLang string) []string {
	format := "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
	if q := strings.TrimSuffix(quality, "p"); q != "" && quality != "best" {
		if h, err := strconv.Atoi(q); err == nil {
			format = fmt.Sprintf(
				"bestvideo[height<=%d][ext=mp4]+bestaudio[ext=m4a]/best[height<=%d][ext=mp4]/best", h, h)
		}
	}

	args := []string{
		"--no-playlist",
		"--no-warnings",
		"-f", format,
		"--merge-output-format", "mp4",
		"-o", filepath.Join(destDir, "source.%(ext)s"),
	}
	if subLang != "" {
		args = append(args,
			"--write-subs",
			"--write-auto-subs",
			"--sub-langs", subLang,
			"--convert-subs", "srt",
		)
	}
	return append(args, url)
}

// findSubtitle locates the downloaded track, converting from VTT when
// yt-dlp could not convert it itself.
func (f *Fetcher) findSubtitle(destDir, lang string) (string, error) {
	if matches, _ := filepath.Glob(filepath.Join(destDir, "source*.srt")); len(matches) > 0 {
		return matches[0], nil
	}
	matches, _ := filepath.Glob(filepath.Join(destDir, "source*.vtt"))
	if len(matches) == 0 {
		return "", fmt.Errorf("no %s subtitle track in %s", lang, destDir)
	}

	doc, err := subtitle.Open(matches[0])
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", matches[0], err)
	}
	srtPath := strings.TrimSuffix(matches[0], filepath.Ext(matches[0])) + ".srt"
	out, err := os.Create(srtPath)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if err := subtitle.WriteSRT(out, doc.Cues); err != nil {
		return "", fmt.Errorf("convert %s: %w", matches[0], err)
	}
	return srtPath, nil
}

func firstVideo(paths []string) string {
	for _, p := range paths {
		if videoExts[strings.ToLower(filepath.Ext(p))] {
			return p
		}
	}
	return ""
}
