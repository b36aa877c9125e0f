// Package config loads process configuration from the environment and
// the named style presets from TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Host               string
	Port               string
	APIKey             string // API key for /v1 routes (empty = no auth, dev mode)
	CorsAllowedOrigins string // comma-separated allowed origins (empty = *, dev mode)

	// Filesystem
	TempDir     string // workspace root for uploads, render scratch and outputs
	FontsDir    string
	PresetsFile string // optional TOML merged over the built-in style presets

	// External tools
	FFmpegPath  string
	FFprobePath string // empty = let go-ffprobe find the binary
	YtdlpPath   string

	// Limits
	MaxUploadMB   int
	RenderWorkers int // per-cue rasterization fan-out within one render

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Load .env if it exists; deployed environments set variables directly.
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnv("HOST", "0.0.0.0"),
		Port:               getEnv("PORT", "8080"),
		APIKey:             getEnv("API_KEY", ""),
		CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		TempDir:            getEnv("TEMP_DIR", filepath.Join(os.TempDir(), "montaj")),
		FontsDir:           getEnv("FONTS_DIR", "fonts"),
		PresetsFile:        getEnv("PRESETS_FILE", ""),
		FFmpegPath:         getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:        getEnv("FFPROBE_PATH", ""),
		YtdlpPath:          getEnv("YTDLP_PATH", "yt-dlp"),
		MaxUploadMB:        getEnvInt("MAX_UPLOAD_MB", 512),
		RenderWorkers:      getEnvInt("RENDER_WORKERS", 4),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
	}

	if cfg.MaxUploadMB < 1 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be at least 1, got %d", cfg.MaxUploadMB)
	}
	if cfg.RenderWorkers < 1 {
		return nil, fmt.Errorf("RENDER_WORKERS must be at least 1, got %d", cfg.RenderWorkers)
	}
	return cfg, nil
}

// MaxUploadBytes is the multipart upload ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
