package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"

	"montaj/internal/models"
	"montaj/internal/render"
)

// PreviewSeconds bounds preview encodes to the opening of the video.
// Cues starting past this point are dropped before rasterization.
const PreviewSeconds = 30

// encodeSettings maps a quality choice to its libx264 preset/crf pair.
var encodeSettings = map[models.Quality]struct {
	preset string
	crf    int
}{
	models.QualityHigh:    {"slow", 18},
	models.QualityMedium:  {"medium", 23},
	models.QualityFast:    {"fast", 28},
	models.QualityPreview: {"veryfast", 32},
}

// CompositeJob describes one full mux: the base video, the rasterized
// cue layers with their screen boxes and time windows, and the audio
// treatment.
type CompositeJob struct {
	VideoPath  string
	OutputPath string
	Layers     []*render.Layer

	// AudioPath selects a replacement track; empty keeps or drops the
	// source audio depending on KeepVideoAudio.
	AudioPath      string
	HasSourceAudio bool
	KeepVideoAudio bool
	AudioVolume    float64 // 0 or 1 means untouched
	AudioOffset    float64 // seconds; positive delays, negative trims
	LoopAudio      bool

	Quality      models.Quality
	Preview      bool
	TargetHeight int // 0 keeps the source height
}

// Compositor drives ffmpeg through the graph builder. The compiled
// argument list runs under the caller's context so shutdown and timeouts
// reach the child process.
type Compositor struct {
	log        *zap.Logger
	ffmpegPath string
}

func NewCompositor(log *zap.Logger, ffmpegPath string) *Compositor {
	if log == nil {
		log = zap.NewNop()
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Compositor{log: log.Named("compositor"), ffmpegPath: ffmpegPath}
}

// Composite runs the full overlay+mux graph and writes the output file.
func (c *Compositor) Composite(ctx context.Context, job CompositeJob) error {
	stream, err := buildGraph(job)
	if err != nil {
		return err
	}
	start := time.Now()
	if err := c.run(ctx, stream); err != nil {
		return fmt.Errorf("composite: %w", err)
	}
	c.log.Info("composited video",
		zap.Int("layers", len(job.Layers)),
		zap.String("output", job.OutputPath),
		zap.Duration("took", time.Since(start)))
	return nil
}

// ExtractFrame grabs a single frame at the given offset, for posters and
// the UI preview thumbnail.
func (c *Compositor) ExtractFrame(ctx context.Context, videoPath string, at float64, outputPath string) error {
	stream := ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", at)}).
		Output(outputPath, ffmpeg.KwArgs{"frames:v": "1", "q:v": "2"}).
		OverWriteOutput()
	if err := c.run(ctx, stream); err != nil {
		return fmt.Errorf("extract frame: %w", err)
	}
	return nil
}

// buildGraph assembles the filter graph: one overlay per layer gated by
// its cue window, optional scale, then the audio branch. Kept separate
// from running so the compiled arguments stay testable.
func buildGraph(job CompositeJob) (*ffmpeg.Stream, error) {
	if job.VideoPath == "" {
		return nil, fmt.Errorf("composite: no video path")
	}
	if job.OutputPath == "" {
		return nil, fmt.Errorf("composite: no output path")
	}

	inputKw := ffmpeg.KwArgs{}
	if job.Preview {
		inputKw["t"] = PreviewSeconds
	}
	video := ffmpeg.Input(job.VideoPath, inputKw)

	v := video.Get("v")
	for _, layer := range job.Layers {
		if layer.Path == "" {
			return nil, fmt.Errorf("layer for cue %d has not been written to disk", layer.Cue.Index)
		}
		v = v.Overlay(ffmpeg.Input(layer.Path), "", ffmpeg.KwArgs{
			"x":      layer.Box.X,
			"y":      layer.Box.Y,
			"enable": fmt.Sprintf("between(t,%.3f,%.3f)", layer.Cue.StartSeconds(), layer.Cue.EndSeconds()),
		})
	}
	if job.TargetHeight > 0 {
		// -2 keeps the width even, which libx264 requires.
		v = v.Filter("scale", ffmpeg.Args{fmt.Sprintf("-2:%d", job.TargetHeight)})
	}

	streams := []*ffmpeg.Stream{v}
	switch {
	case job.AudioPath != "":
		audioKw := ffmpeg.KwArgs{}
		if job.LoopAudio {
			audioKw["stream_loop"] = -1
		}
		a := audioFilters(ffmpeg.Input(job.AudioPath, audioKw).Get("a"), job)
		if job.KeepVideoAudio && job.HasSourceAudio {
			a = ffmpeg.Filter([]*ffmpeg.Stream{video.Get("a"), a}, "amix", nil,
				ffmpeg.KwArgs{"inputs": 2, "duration": "first", "dropout_transition": 3})
		}
		streams = append(streams, a)
	case job.KeepVideoAudio && job.HasSourceAudio:
		streams = append(streams, video.Get("a"))
	}

	quality := job.Quality
	if quality == "" {
		quality = models.QualityMedium
		if job.Preview {
			quality = models.QualityPreview
		}
	}
	enc, ok := encodeSettings[quality]
	if !ok {
		enc = encodeSettings[models.QualityMedium]
	}
	outputKw := ffmpeg.KwArgs{
		"c:v":      "libx264",
		"preset":   enc.preset,
		"crf":      enc.crf,
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}
	if len(streams) > 1 {
		outputKw["c:a"] = "aac"
		outputKw["b:a"] = "192k"
	}
	if job.LoopAudio {
		outputKw["shortest"] = ""
	}
	return ffmpeg.Output(streams, job.OutputPath, outputKw).OverWriteOutput(), nil
}

func audioFilters(a *ffmpeg.Stream, job CompositeJob) *ffmpeg.Stream {
	if job.AudioOffset > 0 {
		ms := int(job.AudioOffset * 1000)
		a = a.Filter("adelay", ffmpeg.Args{fmt.Sprintf("%d|%d", ms, ms)})
	} else if job.AudioOffset < 0 {
		a = a.Filter("atrim", nil, ffmpeg.KwArgs{"start": -job.AudioOffset}).
			Filter("asetpts", ffmpeg.Args{"PTS-STARTPTS"})
	}
	if job.AudioVolume > 0 && job.AudioVolume != 1 {
		a = a.Filter("volume", ffmpeg.Args{fmt.Sprintf("%.2f", job.AudioVolume)})
	}
	return a
}

func (c *Compositor) run(ctx context.Context, stream *ffmpeg.Stream) error {
	args := stream.GetArgs()
	c.log.Debug("running ffmpeg", zap.Strings("args", args))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.ffmpegPath, err, tailLines(stderr.String(), 8))
	}
	return nil
}

// tailLines keeps the end of ffmpeg's stderr, where the actual error is.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
