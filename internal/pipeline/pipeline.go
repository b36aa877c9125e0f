// Package pipeline drives one render request end to end: resolve the
// uploads, parse the subtitle, rasterize every cue into a layer, then
// composite the layers and audio onto the video.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"montaj/internal/arabic"
	"montaj/internal/config"
	"montaj/internal/media"
	"montaj/internal/models"
	"montaj/internal/render"
	"montaj/internal/subtitle"
	"montaj/internal/uploads"
	"montaj/internal/workspace"
)

// Prober and Compositor cover the two ffmpeg-backed collaborators so
// tests can run the pipeline without the binaries installed.
type Prober interface {
	Probe(ctx context.Context, path string) models.MediaInfo
}

type Compositor interface {
	Composite(ctx context.Context, job media.CompositeJob) error
}

type Pipeline struct {
	log        *zap.Logger
	uploads    *uploads.Registry
	ws         *workspace.Workspace
	renderer   *render.Renderer
	prober     Prober
	compositor Compositor
	presets    map[string]models.StyleConfig

	// rasterWorkers bounds the per-cue rasterization fan-out.
	rasterWorkers int
}

func New(log *zap.Logger, reg *uploads.Registry, ws *workspace.Workspace, renderer *render.Renderer, prober Prober, compositor Compositor, presets map[string]models.StyleConfig, rasterWorkers int) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	if rasterWorkers <= 0 {
		rasterWorkers = 4
	}
	return &Pipeline{
		log:           log.Named("pipeline"),
		uploads:       reg,
		ws:            ws,
		renderer:      renderer,
		prober:        prober,
		compositor:    compositor,
		presets:       presets,
		rasterWorkers: rasterWorkers,
	}
}

// ResolveStyle builds the effective style for a request: named preset
// as the base, per-field overrides on top, then range validation.
func (p *Pipeline) ResolveStyle(req models.RenderRequest) (models.StyleConfig, error) {
	style := models.DefaultStyle()
	if req.Preset != "" {
		base, ok := p.presets[config.NormalizePresetName(req.Preset)]
		if !ok {
			return models.StyleConfig{}, fmt.Errorf("unknown style preset %q", req.Preset)
		}
		style = base
	}
	style = req.Style.ApplyTo(style)
	if err := style.Validate(); err != nil {
		return models.StyleConfig{}, err
	}
	return style, nil
}

// Run executes the job and returns the path of the finished output.
// Stages run strictly in order; a failure in any stage aborts the
// whole render.
func (p *Pipeline) Run(ctx context.Context, job models.Job, stage func(string)) (string, error) {
	req := job.Request
	if err := req.Validate(); err != nil {
		return "", err
	}

	video, err := p.uploads.Resolve(req.VideoID, models.UploadKindVideo)
	if err != nil {
		return "", err
	}
	sub, err := p.uploads.Resolve(req.SubtitleID, models.UploadKindSubtitle)
	if err != nil {
		return "", err
	}
	var audio *models.Upload
	if req.AudioID != nil {
		a, err := p.uploads.Resolve(*req.AudioID, models.UploadKindAudio)
		if err != nil {
			return "", err
		}
		audio = &a
	}

	style, err := p.ResolveStyle(req)
	if err != nil {
		return "", err
	}

	stage("probing video")
	info := p.prober.Probe(ctx, video.Path)
	if info.Width <= 0 || info.Height <= 0 {
		return "", fmt.Errorf("could not determine dimensions of %s", video.Filename)
	}

	stage("parsing subtitles")
	cues, err := p.loadCues(sub.Path, req, info)
	if err != nil {
		return "", err
	}

	rd, err := p.ws.AcquireRenderDir(job.ID)
	if err != nil {
		return "", err
	}
	defer rd.Release()

	stage(fmt.Sprintf("rendering %d subtitle layers", len(cues)))
	layers, err := p.rasterize(ctx, rd, cues, style, info)
	if err != nil {
		return "", err
	}

	if audio != nil && audio.Media != nil && !req.LoopAudio &&
		info.Duration > 0 && audio.Media.Duration > 0 && audio.Media.Duration < info.Duration {
		p.log.Info("audio track is shorter than the video; the remainder will be silent",
			zap.Float64("audio_seconds", audio.Media.Duration),
			zap.Float64("video_seconds", info.Duration))
	}

	output := p.ws.OutputPath(job.ID, ".mp4")
	cjob := media.CompositeJob{
		VideoPath:      video.Path,
		OutputPath:     output,
		Layers:         layers,
		HasSourceAudio: info.HasAudio,
		KeepVideoAudio: req.KeepVideoAudio,
		AudioVolume:    1,
		AudioOffset:    req.AudioOffset,
		LoopAudio:      req.LoopAudio,
		Quality:        req.Quality,
		Preview:        req.Preview,
		TargetHeight:   req.TargetHeight,
	}
	if audio != nil {
		cjob.AudioPath = audio.Path
	} else {
		// Without a replacement track the source audio always
		// survives; keep_video_audio only arbitrates mixing.
		cjob.KeepVideoAudio = true
	}
	if req.AudioVolume != nil {
		cjob.AudioVolume = *req.AudioVolume
	}

	stage("compositing video")
	if err := p.compositor.Composite(ctx, cjob); err != nil {
		return "", err
	}
	return output, nil
}

// loadCues parses the subtitle file and applies the request's
// adjustments: the subtitle offset shift, the preview window and the
// optional Arabic letter folding.
func (p *Pipeline) loadCues(path string, req models.RenderRequest, info models.MediaInfo) ([]models.Cue, error) {
	doc, err := subtitle.Open(path)
	if err != nil {
		return nil, err
	}
	if len(doc.Warnings) > 0 {
		p.log.Warn("subtitle file parsed with repairs",
			zap.String("format", doc.Format),
			zap.Int("warnings", len(doc.Warnings)))
	}

	cues := doc.Cues
	if req.SubtitleOffset != 0 {
		offset := time.Duration(req.SubtitleOffset * float64(time.Second))
		duration := time.Duration(info.Duration * float64(time.Second))
		var dropped int
		cues, dropped = subtitle.Shift(cues, offset, duration)
		if dropped > 0 {
			p.log.Info("subtitle offset dropped cues outside the video",
				zap.Float64("offset_seconds", req.SubtitleOffset),
				zap.Int("dropped", dropped))
		}
	}
	if req.Preview {
		cues = dropLate(cues, media.PreviewSeconds*time.Second)
	}
	if len(cues) == 0 {
		return nil, errors.New("no subtitle cues fall within the render window")
	}
	if req.NormalizeArabic {
		for i := range cues {
			cues[i].Text = arabic.Normalize(cues[i].Text)
		}
	}
	return cues, nil
}

// rasterize renders every cue into a PNG layer under the render dir.
// Cues are independent, so they fan out over a bounded errgroup; the
// slice keeps cue order regardless of completion order.
func (p *Pipeline) rasterize(ctx context.Context, rd *workspace.RenderDir, cues []models.Cue, style models.StyleConfig, info models.MediaInfo) ([]*render.Layer, error) {
	layers := make([]*render.Layer, len(cues))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.rasterWorkers)
	for i, cue := range cues {
		i, cue := i, cue
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			layer, err := p.renderer.RenderCue(cue, style, info.Width, info.Height)
			if err != nil {
				return fmt.Errorf("cue %d: %w", cue.Index, err)
			}
			if err := layer.WritePNG(rd.LayerPath(i)); err != nil {
				return fmt.Errorf("cue %d: %w", cue.Index, err)
			}
			layers[i] = layer
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return layers, nil
}

func dropLate(cues []models.Cue, limit time.Duration) []models.Cue {
	kept := make([]models.Cue, 0, len(cues))
	for _, c := range cues {
		if c.Start < limit {
			kept = append(kept, c)
		}
	}
	return kept
}
