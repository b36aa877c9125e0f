package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"montaj/internal/models"
)

//go:embed presets.toml
var builtinPresets []byte

type presetsFile struct {
	Presets map[string]models.StyleConfig `toml:"presets"`
}

// LoadPresets returns the named style presets: the generated default,
// the built-in TOML set, then entries from path replacing or extending
// them. Every entry must be a complete, valid style.
func LoadPresets(path string) (map[string]models.StyleConfig, error) {
	presets := map[string]models.StyleConfig{
		"default": models.DefaultStyle(),
	}
	if err := mergePresets(presets, builtinPresets); err != nil {
		return nil, fmt.Errorf("built-in presets: %w", err)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read presets file: %w", err)
		}
		if err := mergePresets(presets, raw); err != nil {
			return nil, fmt.Errorf("presets file %s: %w", path, err)
		}
	}
	return presets, nil
}

func mergePresets(dst map[string]models.StyleConfig, raw []byte) error {
	var file presetsFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return err
	}
	for name, style := range file.Presets {
		if err := style.Validate(); err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		dst[NormalizePresetName(name)] = style
	}
	return nil
}

var presetSeparators = regexp.MustCompile(`[\s_-]+`)

// NormalizePresetName maps display spellings onto preset keys, so
// "Professional Settings" selects the professional_settings entry.
func NormalizePresetName(name string) string {
	return presetSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}
