package models

import (
	"fmt"
	"image/color"
)

// StyleConfig is the full set of subtitle styling knobs for one render.
// A value is copied into every render call; nothing here is shared or
// mutated after the job is enqueued.
type StyleConfig struct {
	FontFamily        string    `json:"font_family" toml:"font_family"`
	FontSize          int       `json:"font_size" toml:"font_size"`
	TextColor         string    `json:"text_color" toml:"text_color"`
	StrokeColor       string    `json:"stroke_color" toml:"stroke_color"`
	StrokeWidth       int       `json:"stroke_width" toml:"stroke_width"`
	ShadowColor       string    `json:"shadow_color" toml:"shadow_color"`
	ShadowOffsetX     int       `json:"shadow_offset_x" toml:"shadow_offset_x"`
	ShadowOffsetY     int       `json:"shadow_offset_y" toml:"shadow_offset_y"`
	ShadowBlur        int       `json:"shadow_blur" toml:"shadow_blur"`
	BackgroundColor   string    `json:"background_color" toml:"background_color"`
	BackgroundOpacity float64   `json:"background_opacity" toml:"background_opacity"`
	MarginVertical    int       `json:"margin_vertical" toml:"margin_vertical"`
	MarginHorizontal  int       `json:"margin_horizontal" toml:"margin_horizontal"`
	WrapWidth         int       `json:"wrap_width" toml:"wrap_width"`
	Alignment         Alignment `json:"alignment" toml:"alignment"`
	Position          Position  `json:"position" toml:"position"`
}

// DefaultStyle returns the baseline style every preset builds on.
func DefaultStyle() StyleConfig {
	return StyleConfig{
		FontFamily:        "Noto Sans Arabic",
		FontSize:          28,
		TextColor:         "#FFFFFF",
		StrokeColor:       "#000000",
		StrokeWidth:       2,
		ShadowColor:       "#000000",
		ShadowOffsetX:     2,
		ShadowOffsetY:     2,
		ShadowBlur:        0,
		BackgroundColor:   "#000000",
		BackgroundOpacity: 0.7,
		MarginVertical:    20,
		MarginHorizontal:  30,
		WrapWidth:         40,
		Alignment:         AlignCenter,
		Position:          PositionBottom,
	}
}

// Validate checks every field against its allowed range.
func (s StyleConfig) Validate() error {
	if s.FontSize < 16 || s.FontSize > 72 {
		return fmt.Errorf("font_size %d out of range [16,72]", s.FontSize)
	}
	if s.StrokeWidth < 0 || s.StrokeWidth > 5 {
		return fmt.Errorf("stroke_width %d out of range [0,5]", s.StrokeWidth)
	}
	if s.ShadowBlur < 0 {
		return fmt.Errorf("shadow_blur %d must not be negative", s.ShadowBlur)
	}
	if s.BackgroundOpacity < 0 || s.BackgroundOpacity > 1 {
		return fmt.Errorf("background_opacity %.2f out of range [0,1]", s.BackgroundOpacity)
	}
	if s.MarginVertical < 0 || s.MarginVertical > 200 {
		return fmt.Errorf("margin_vertical %d out of range [0,200]", s.MarginVertical)
	}
	if s.MarginHorizontal < 0 || s.MarginHorizontal > 200 {
		return fmt.Errorf("margin_horizontal %d out of range [0,200]", s.MarginHorizontal)
	}
	if s.WrapWidth < 20 || s.WrapWidth > 80 {
		return fmt.Errorf("wrap_width %d out of range [20,80]", s.WrapWidth)
	}
	switch s.Alignment {
	case AlignLeft, AlignCenter, AlignRight:
	default:
		return fmt.Errorf("alignment %q not one of left/center/right", s.Alignment)
	}
	switch s.Position {
	case PositionTop, PositionCenter, PositionBottom:
	default:
		return fmt.Errorf("position %q not one of top/center/bottom", s.Position)
	}
	for name, hex := range map[string]string{
		"text_color":       s.TextColor,
		"stroke_color":     s.StrokeColor,
		"shadow_color":     s.ShadowColor,
		"background_color": s.BackgroundColor,
	} {
		if _, err := ParseHexColor(hex); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// StyleOverrides carries optional per-request style fields. Nil means
// "keep the preset value".
type StyleOverrides struct {
	FontFamily        *string    `json:"font_family,omitempty"`
	FontSize          *int       `json:"font_size,omitempty"`
	TextColor         *string    `json:"text_color,omitempty"`
	StrokeColor       *string    `json:"stroke_color,omitempty"`
	StrokeWidth       *int       `json:"stroke_width,omitempty"`
	ShadowColor       *string    `json:"shadow_color,omitempty"`
	ShadowOffsetX     *int       `json:"shadow_offset_x,omitempty"`
	ShadowOffsetY     *int       `json:"shadow_offset_y,omitempty"`
	ShadowBlur        *int       `json:"shadow_blur,omitempty"`
	BackgroundColor   *string    `json:"background_color,omitempty"`
	BackgroundOpacity *float64   `json:"background_opacity,omitempty"`
	MarginVertical    *int       `json:"margin_vertical,omitempty"`
	MarginHorizontal  *int       `json:"margin_horizontal,omitempty"`
	WrapWidth         *int       `json:"wrap_width,omitempty"`
	Alignment         *Alignment `json:"alignment,omitempty"`
	Position          *Position  `json:"position,omitempty"`
}

// ApplyTo overlays the non-nil fields onto base and returns the result.
func (o *StyleOverrides) ApplyTo(base StyleConfig) StyleConfig {
	if o == nil {
		return base
	}
	if o.FontFamily != nil {
		base.FontFamily = *o.FontFamily
	}
	if o.FontSize != nil {
		base.FontSize = *o.FontSize
	}
	if o.TextColor != nil {
		base.TextColor = *o.TextColor
	}
	if o.StrokeColor != nil {
		base.StrokeColor = *o.StrokeColor
	}
	if o.StrokeWidth != nil {
		base.StrokeWidth = *o.StrokeWidth
	}
	if o.ShadowColor != nil {
		base.ShadowColor = *o.ShadowColor
	}
	if o.ShadowOffsetX != nil {
		base.ShadowOffsetX = *o.ShadowOffsetX
	}
	if o.ShadowOffsetY != nil {
		base.ShadowOffsetY = *o.ShadowOffsetY
	}
	if o.ShadowBlur != nil {
		base.ShadowBlur = *o.ShadowBlur
	}
	if o.BackgroundColor != nil {
		base.BackgroundColor = *o.BackgroundColor
	}
	if o.BackgroundOpacity != nil {
		base.BackgroundOpacity = *o.BackgroundOpacity
	}
	if o.MarginVertical != nil {
		base.MarginVertical = *o.MarginVertical
	}
	if o.MarginHorizontal != nil {
		base.MarginHorizontal = *o.MarginHorizontal
	}
	if o.WrapWidth != nil {
		base.WrapWidth = *o.WrapWidth
	}
	if o.Alignment != nil {
		base.Alignment = *o.Alignment
	}
	if o.Position != nil {
		base.Position = *o.Position
	}
	return base
}

// ParseHexColor parses #RGB or #RRGGBB into an opaque RGBA color.
func ParseHexColor(s string) (color.RGBA, error) {
	c := color.RGBA{A: 0xff}
	if len(s) == 0 || s[0] != '#' {
		return c, fmt.Errorf("invalid hex color %q", s)
	}
	hexVal := func(b byte) (uint8, bool) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', true
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, true
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10, true
		}
		return 0, false
	}
	switch len(s) {
	case 7: // #RRGGBB
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			hi, ok1 := hexVal(s[1+i*2])
			lo, ok2 := hexVal(s[2+i*2])
			if !ok1 || !ok2 {
				return c, fmt.Errorf("invalid hex color %q", s)
			}
			*dst = hi<<4 | lo
		}
	case 4: // #RGB
		for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
			v, ok := hexVal(s[1+i])
			if !ok {
				return c, fmt.Errorf("invalid hex color %q", s)
			}
			*dst = v<<4 | v
		}
	default:
		return c, fmt.Errorf("invalid hex color %q", s)
	}
	return c, nil
}

// WithAlpha scales a color's alpha by opacity in [0,1], premultiplying
// the channels the way image/draw expects.
func WithAlpha(c color.RGBA, opacity float64) color.RGBA {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	a := uint8(opacity*255 + 0.5)
	return color.RGBA{
		R: uint8((int(c.R)*int(a) + 127) / 255),
		G: uint8((int(c.G)*int(a) + 127) / 255),
		B: uint8((int(c.B)*int(a) + 127) / 255),
		A: a,
	}
}
