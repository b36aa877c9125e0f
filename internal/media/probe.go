// Package media wraps the external ffmpeg toolchain: metadata probing,
// layer compositing and yt-dlp fetching. Every subprocess honors the
// caller's context so a cancelled render kills its children.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
	"go.uber.org/zap"
	"gopkg.in/vansante/go-ffprobe.v2"

	"montaj/internal/models"
)

const probeTimeout = 30 * time.Second

var (
	videoExts = map[string]bool{
		".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	}
	audioExts = map[string]bool{
		".mp3": true, ".wav": true, ".aac": true, ".m4a": true, ".ogg": true, ".flac": true,
	}
)

// Prober resolves media metadata through an ordered provider chain:
// typed ffprobe first, the ffmpeg-go JSON probe second, and a coarse
// extension-based guess when both fail. The chosen provider is recorded
// on the result so degraded metadata stays visible.
type Prober struct {
	log *zap.Logger
}

func NewProber(log *zap.Logger, ffprobePath string) *Prober {
	if log == nil {
		log = zap.NewNop()
	}
	if ffprobePath != "" {
		ffprobe.SetFFProbeBinPath(ffprobePath)
	}
	return &Prober{log: log.Named("probe")}
}

// Probe never fails: the fallback provider always produces a usable
// MediaInfo. ByteSize comes from the filesystem, not the container.
func (p *Prober) Probe(ctx context.Context, path string) models.MediaInfo {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	info, err := p.probeTyped(ctx, path)
	if err != nil {
		p.log.Warn("ffprobe provider failed", zap.String("path", path), zap.Error(err))
		info, err = p.probeFFmpeg(path)
	}
	if err != nil {
		p.log.Warn("ffmpeg probe provider failed, using coarse fallback",
			zap.String("path", path), zap.Error(err))
		info = fallbackInfo(path)
	}

	if st, err := os.Stat(path); err == nil {
		info.ByteSize = st.Size()
	}
	return info
}

func (p *Prober) probeTyped(ctx context.Context, path string) (models.MediaInfo, error) {
	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return models.MediaInfo{}, err
	}

	info := models.MediaInfo{
		Duration: data.Format.DurationSeconds,
		Source:   models.ProbeSourceFFprobe,
	}
	if v := data.FirstVideoStream(); v != nil {
		info.HasVideo = true
		info.Width = v.Width
		info.Height = v.Height
		info.FPS = parseFraction(v.RFrameRate)
		info.VideoCodec = v.CodecName
	}
	if a := data.FirstAudioStream(); a != nil {
		info.HasAudio = true
		info.AudioCodec = a.CodecName
		info.Channels = a.Channels
		if sr, err := strconv.Atoi(a.SampleRate); err == nil {
			info.SampleRate = sr
		}
	}
	return info, nil
}

func (p *Prober) probeFFmpeg(path string) (models.MediaInfo, error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return models.MediaInfo{}, err
	}
	return decodeProbeJSON(raw)
}

// probePayload mirrors the subset of `ffprobe -show_format -show_streams`
// JSON the second provider needs.
type probePayload struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
}

func decodeProbeJSON(raw string) (models.MediaInfo, error) {
	var payload probePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.MediaInfo{}, fmt.Errorf("decode probe output: %w", err)
	}

	info := models.MediaInfo{Source: models.ProbeSourceFFmpeg}
	if d, err := strconv.ParseFloat(payload.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	for _, s := range payload.Streams {
		switch s.CodecType {
		case "video":
			if info.HasVideo {
				continue
			}
			info.HasVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.FPS = parseFraction(s.RFrameRate)
			info.VideoCodec = s.CodecName
		case "audio":
			if info.HasAudio {
				continue
			}
			info.HasAudio = true
			info.AudioCodec = s.CodecName
			info.Channels = s.Channels
			if sr, err := strconv.Atoi(s.SampleRate); err == nil {
				info.SampleRate = sr
			}
		}
		if info.Duration == 0 && s.Duration != "" {
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		}
	}
	return info, nil
}

// fallbackInfo guesses the stream layout from the file extension. Audio
// files are assumed stereo 44.1kHz, which matches the most common uploads
// closely enough for offset and volume math.
func fallbackInfo(path string) models.MediaInfo {
	ext := strings.ToLower(filepath.Ext(path))
	info := models.MediaInfo{Source: models.ProbeSourceFallback}
	switch {
	case videoExts[ext]:
		info.HasVideo = true
	case audioExts[ext]:
		info.HasAudio = true
		info.SampleRate = 44100
		info.Channels = 2
	}
	return info
}

// parseFraction evaluates ffprobe rate strings like "30000/1001".
func parseFraction(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	if !found {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
