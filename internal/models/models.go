package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enums

type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

type UploadKind string

const (
	UploadKindVideo    UploadKind = "video"
	UploadKindAudio    UploadKind = "audio"
	UploadKindSubtitle UploadKind = "subtitle"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Quality selects the encoder preset/crf pair used for the final export.
type Quality string

const (
	QualityHigh    Quality = "high"
	QualityMedium  Quality = "medium"
	QualityFast    Quality = "fast"
	QualityPreview Quality = "preview"
)

// ProbeSource records which metadata provider produced a MediaInfo,
// so fallback behavior is observable instead of silent.
type ProbeSource string

const (
	ProbeSourceFFprobe  ProbeSource = "ffprobe"
	ProbeSourceFFmpeg   ProbeSource = "ffmpeg"
	ProbeSourceFallback ProbeSource = "fallback"
)

// Models

// Cue is one timed subtitle entry. Cues are created by the parser and
// immutable afterward.
type Cue struct {
	Index int           `json:"index"`
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

func (c Cue) StartSeconds() float64 { return c.Start.Seconds() }
func (c Cue) EndSeconds() float64   { return c.End.Seconds() }

// BoundingBox is a pixel-space rectangle, computed per cue per render.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MediaInfo is probed container/stream metadata for an uploaded file.
type MediaInfo struct {
	Duration   float64     `json:"duration_seconds"`
	Width      int         `json:"width,omitempty"`
	Height     int         `json:"height,omitempty"`
	FPS        float64     `json:"fps,omitempty"`
	SampleRate int         `json:"sample_rate,omitempty"`
	Channels   int         `json:"channels,omitempty"`
	VideoCodec string      `json:"video_codec,omitempty"`
	AudioCodec string      `json:"audio_codec,omitempty"`
	ByteSize   int64       `json:"byte_size,omitempty"`
	HasVideo   bool        `json:"has_video"`
	HasAudio   bool        `json:"has_audio"`
	Source     ProbeSource `json:"source"`
}

// SubtitleStats summarizes a parsed subtitle upload for the UI:
// how many cues survived, what was skipped, and a few shaped previews.
type SubtitleStats struct {
	Format   string   `json:"format"`
	CueCount int      `json:"cue_count"`
	Warnings []string `json:"warnings,omitempty"`
	Samples  []string `json:"samples,omitempty"`
}

type Upload struct {
	ID        uuid.UUID      `json:"id"`
	Kind      UploadKind     `json:"kind"`
	Filename  string         `json:"filename"`
	Path      string         `json:"-"`
	ByteSize  int64          `json:"byte_size"`
	Media     *MediaInfo     `json:"media,omitempty"`
	Subtitle  *SubtitleStats `json:"subtitle,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Job struct {
	ID         uuid.UUID     `json:"id"`
	Status     JobStatus     `json:"status"`
	Stage      string        `json:"stage,omitempty"`
	Request    RenderRequest `json:"request"`
	OutputName string        `json:"output_name"`
	OutputPath string        `json:"-"`
	Error      *string       `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// DTOs for API requests/responses

type RenderRequest struct {
	VideoID    uuid.UUID  `json:"video_id"`
	SubtitleID uuid.UUID  `json:"subtitle_id"`
	AudioID    *uuid.UUID `json:"audio_id,omitempty"`

	// Style: named preset plus optional per-field overrides
	Preset string          `json:"preset,omitempty"`
	Style  *StyleOverrides `json:"style,omitempty"`

	Quality Quality `json:"quality,omitempty"`
	Preview bool    `json:"preview,omitempty"` // first 30s only

	// NormalizeArabic folds alef/teh-marbuta/yeh variants in the cue
	// text before shaping. Off by default; display text is untouched
	// unless the caller asks.
	NormalizeArabic bool `json:"normalize_arabic,omitempty"`

	SubtitleOffset float64  `json:"subtitle_offset,omitempty"` // seconds, ±
	AudioOffset    float64  `json:"audio_offset,omitempty"`    // seconds, ±
	AudioVolume    *float64 `json:"audio_volume,omitempty"`    // 0.0–2.0, default 1.0
	KeepVideoAudio bool     `json:"keep_video_audio,omitempty"`
	LoopAudio      bool     `json:"loop_audio,omitempty"`

	TargetHeight int    `json:"target_height,omitempty"` // 0 = keep source
	OutputName   string `json:"output_name,omitempty"`
}

// Validate checks the request fields that do not need upload lookups.
// Style content is validated separately once the preset is resolved.
func (r RenderRequest) Validate() error {
	if r.VideoID == uuid.Nil {
		return errors.New("video_id is required")
	}
	if r.SubtitleID == uuid.Nil {
		return errors.New("subtitle_id is required")
	}
	switch r.Quality {
	case "", QualityHigh, QualityMedium, QualityFast, QualityPreview:
	default:
		return fmt.Errorf("unknown quality %q", r.Quality)
	}
	if r.AudioVolume != nil && (*r.AudioVolume < 0 || *r.AudioVolume > 2) {
		return fmt.Errorf("audio_volume %.2f out of range [0,2]", *r.AudioVolume)
	}
	if r.TargetHeight < 0 {
		return fmt.Errorf("target_height %d is negative", r.TargetHeight)
	}
	// libx264 with yuv420p needs even dimensions; the width side is
	// handled by scale=-2.
	if r.TargetHeight%2 != 0 {
		return fmt.Errorf("target_height %d must be even", r.TargetHeight)
	}
	return nil
}

type CreateRenderResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status JobStatus `json:"status"`
}

type ListJobsResponse struct {
	Jobs  []Job `json:"jobs"`
	Total int   `json:"total"`
}

type FetchRequest struct {
	URL          string `json:"url"`
	Quality      string `json:"quality,omitempty"`       // e.g. "720p" caps the height
	SubtitleLang string `json:"subtitle_lang,omitempty"` // e.g. "ar" also fetches subtitles
}

type FetchResponse struct {
	Video    Upload  `json:"video"`
	Subtitle *Upload `json:"subtitle,omitempty"`
}

type FontInfo struct {
	Family string `json:"family"`
	Path   string `json:"path,omitempty"`
	Arabic bool   `json:"arabic"`
}
