package media

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"montaj/internal/models"
)

const sampleProbeJSON = `{
  "streams": [
    {
      "codec_type": "video",
      "codec_name": "h264",
      "width": 1920,
      "height": 1080,
      "r_frame_rate": "30000/1001",
      "duration": "12.512500"
    },
    {
      "codec_type": "audio",
      "codec_name": "aac",
      "sample_rate": "48000",
      "channels": 2,
      "r_frame_rate": "0/0"
    }
  ],
  "format": {
    "duration": "12.545000"
  }
}`

func TestDecodeProbeJSON(t *testing.T) {
	info, err := decodeProbeJSON(sampleProbeJSON)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Source != models.ProbeSourceFFmpeg {
		t.Errorf("source = %q, want ffmpeg", info.Source)
	}
	if !info.HasVideo || !info.HasAudio {
		t.Fatalf("stream flags wrong: %+v", info)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d", info.Width, info.Height)
	}
	if math.Abs(info.FPS-29.97) > 0.01 {
		t.Errorf("fps = %f, want ~29.97", info.FPS)
	}
	if info.Duration != 12.545 {
		t.Errorf("duration = %f, want 12.545", info.Duration)
	}
	if info.VideoCodec != "h264" || info.AudioCodec != "aac" {
		t.Errorf("codecs = %q/%q", info.VideoCodec, info.AudioCodec)
	}
	if info.SampleRate != 48000 || info.Channels != 2 {
		t.Errorf("audio = %d Hz %d ch", info.SampleRate, info.Channels)
	}
}

func TestDecodeProbeJSONDurationFromStream(t *testing.T) {
	info, err := decodeProbeJSON(`{
	  "streams": [{"codec_type": "audio", "codec_name": "mp3", "sample_rate": "44100", "channels": 2, "duration": "3.5"}],
	  "format": {}
	}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Duration != 3.5 {
		t.Errorf("duration = %f, want stream value 3.5", info.Duration)
	}
}

func TestDecodeProbeJSONMalformed(t *testing.T) {
	if _, err := decodeProbeJSON("{not json"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseFraction(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 29.97002997002997},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"abc/def", 0},
	}
	for _, tc := range cases {
		if got := parseFraction(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("parseFraction(%q) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestFallbackInfoByExtension(t *testing.T) {
	audio := fallbackInfo("track.MP3")
	if !audio.HasAudio || audio.HasVideo {
		t.Errorf("mp3 flags wrong: %+v", audio)
	}
	if audio.SampleRate != 44100 || audio.Channels != 2 {
		t.Errorf("mp3 fallback should assume stereo 44.1kHz: %+v", audio)
	}
	if audio.Source != models.ProbeSourceFallback {
		t.Errorf("source = %q", audio.Source)
	}

	video := fallbackInfo("clip.mp4")
	if !video.HasVideo || video.HasAudio {
		t.Errorf("mp4 flags wrong: %+v", video)
	}
	if video.Duration != 0 {
		t.Errorf("fallback duration = %f, want 0", video.Duration)
	}
}

func TestProbeFallsBackOnGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-video.mp4")
	if err := os.WriteFile(path, []byte("garbage"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	p := NewProber(nil, "")
	info := p.Probe(context.Background(), path)
	if info.Source == models.ProbeSourceFFprobe {
		t.Errorf("garbage file should not probe cleanly, source = %q", info.Source)
	}
	if info.ByteSize != int64(len("garbage")) {
		t.Errorf("byte size = %d, want %d", info.ByteSize, len("garbage"))
	}
}
