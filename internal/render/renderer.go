// Package render rasterizes styled subtitle cues into transparent image
// layers ready for compositing. Each cue is wrapped, shaped, measured
// against the real font face, placed on the frame and drawn with its
// background, shadow, stroke and fill passes.
package render

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"go.uber.org/zap"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"montaj/internal/arabic"
	"montaj/internal/fonts"
	"montaj/internal/layout"
	"montaj/internal/models"
)

const (
	// lineSpacing is the baseline-to-baseline distance in font heights.
	lineSpacing = 1.3
	// bgPadX/bgPadY pad the background box around the measured text.
	bgPadX = 10
	bgPadY = 5
)

// Layer is one rasterized cue: the image, where it goes on the frame and
// when it is visible. Box is the padded layer box; the text block inside
// it honors the safe-area rules on its own.
type Layer struct {
	Cue      models.Cue
	Image    image.Image
	Box      models.BoundingBox
	Provider arabic.Provider
	Path     string // set once the layer has been written to disk
}

// Renderer turns cues into layers. Safe for concurrent use: the shaper
// and font registry are read-only and every render call works on its own
// drawing context.
type Renderer struct {
	log    *zap.Logger
	shaper *arabic.Shaper
	fonts  *fonts.Registry
}

func NewRenderer(log *zap.Logger, shaper *arabic.Shaper, registry *fonts.Registry) *Renderer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{log: log.Named("render"), shaper: shaper, fonts: registry}
}

// RenderCue rasterizes one cue at the given style for a videoWidth x
// videoHeight frame. Newlines inside the cue are joined before wrapping,
// so the wrap width alone decides the line breaks.
func (r *Renderer) RenderCue(cue models.Cue, style models.StyleConfig, videoWidth, videoHeight int) (*Layer, error) {
	raw := arabic.Clean(strings.ReplaceAll(cue.Text, "\n", " "))
	lines := arabic.Wrap(raw, style.WrapWidth)
	if len(lines) == 0 {
		return nil, fmt.Errorf("cue %d has no renderable text", cue.Index)
	}

	shaped := r.shaper.Shape(strings.Join(lines, "\n"))
	shapedLines := strings.Split(shaped.Display, "\n")

	face, family := r.fonts.Face(style.FontFamily, float64(style.FontSize))
	if arabic.ContainsArabic(raw) && !r.fonts.CoversArabic(family) {
		r.log.Warn("font lacks Arabic glyphs, text will show fallback boxes",
			zap.String("family", family), zap.Int("cue", cue.Index))
	}

	metrics := face.Metrics()
	fontHeight := fixedToFloat(metrics.Height)
	ascent := fixedToFloat(metrics.Ascent)
	lineAdvance := fontHeight * lineSpacing

	widths := make([]int, len(shapedLines))
	textWidth := 0
	for i, line := range shapedLines {
		widths[i] = xfont.MeasureString(face, line).Ceil()
		if widths[i] > textWidth {
			textWidth = widths[i]
		}
	}
	textHeight := int(math.Ceil(fontHeight + lineAdvance*float64(len(shapedLines)-1)))

	blockWidth := textWidth + 2*bgPadX
	blockHeight := textHeight + 2*bgPadY
	box := layout.Place(videoWidth, videoHeight, style, blockWidth, blockHeight)

	pad := effectInsets(style)
	dc := gg.NewContext(blockWidth+pad.left+pad.right, blockHeight+pad.top+pad.bottom)
	dc.SetFontFace(face)

	if style.BackgroundOpacity > 0 {
		bg, err := models.ParseHexColor(style.BackgroundColor)
		if err != nil {
			return nil, fmt.Errorf("background color: %w", err)
		}
		dc.SetColor(models.WithAlpha(bg, style.BackgroundOpacity))
		dc.DrawRectangle(float64(pad.left), float64(pad.top), float64(blockWidth), float64(blockHeight))
		dc.Fill()
	}

	// Baseline of line i inside the layer. Horizontal start depends on the
	// per-line width and the configured alignment within the block.
	originY := float64(pad.top+bgPadY) + ascent
	lineX := func(i int) float64 {
		switch style.Alignment {
		case models.AlignLeft:
			return float64(pad.left + bgPadX)
		case models.AlignRight:
			return float64(pad.left + bgPadX + textWidth - widths[i])
		default:
			return float64(pad.left+bgPadX) + float64(textWidth-widths[i])/2
		}
	}

	if style.ShadowOffsetX != 0 || style.ShadowOffsetY != 0 || style.ShadowBlur > 0 {
		shadow, err := models.ParseHexColor(style.ShadowColor)
		if err != nil {
			return nil, fmt.Errorf("shadow color: %w", err)
		}
		sc := gg.NewContext(dc.Width(), dc.Height())
		sc.SetFontFace(face)
		sc.SetColor(shadow)
		for i, line := range shapedLines {
			x := lineX(i) + float64(style.ShadowOffsetX)
			y := originY + lineAdvance*float64(i) + float64(style.ShadowOffsetY)
			sc.DrawString(line, x, y)
		}
		img := sc.Image()
		if style.ShadowBlur > 0 {
			img = imaging.Blur(img, float64(style.ShadowBlur))
		}
		dc.DrawImage(img, 0, 0)
	}

	if style.StrokeWidth > 0 {
		stroke, err := models.ParseHexColor(style.StrokeColor)
		if err != nil {
			return nil, fmt.Errorf("stroke color: %w", err)
		}
		dc.SetColor(stroke)
		s := style.StrokeWidth
		for dx := -s; dx <= s; dx++ {
			for dy := -s; dy <= s; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if dx*dx+dy*dy > s*s {
					continue
				}
				for i, line := range shapedLines {
					dc.DrawString(line, lineX(i)+float64(dx), originY+lineAdvance*float64(i)+float64(dy))
				}
			}
		}
	}

	fill, err := models.ParseHexColor(style.TextColor)
	if err != nil {
		return nil, fmt.Errorf("text color: %w", err)
	}
	dc.SetColor(fill)
	for i, line := range shapedLines {
		dc.DrawString(line, lineX(i), originY+lineAdvance*float64(i))
	}

	return &Layer{
		Cue:   cue,
		Image: dc.Image(),
		Box: models.BoundingBox{
			X:      box.X - pad.left,
			Y:      box.Y - pad.top,
			Width:  dc.Width(),
			Height: dc.Height(),
		},
		Provider: shaped.Provider,
	}, nil
}

// WritePNG writes the layer image to path and records the location.
func (l *Layer) WritePNG(path string) error {
	if err := gg.SavePNG(path, l.Image); err != nil {
		return fmt.Errorf("write layer %d: %w", l.Cue.Index, err)
	}
	l.Path = path
	return nil
}

// insets are the per-side margins the stroke ring, shadow offset and blur
// radius need beyond the text block so no effect is clipped at the layer
// edge. The bottom inset matches the clearance the placement reserves.
type insets struct {
	left, top, right, bottom int
}

func effectInsets(style models.StyleConfig) insets {
	base := style.StrokeWidth + style.ShadowBlur
	in := insets{left: base, top: base, right: base, bottom: base}
	if style.ShadowOffsetX > 0 {
		in.right += style.ShadowOffsetX
	} else {
		in.left -= style.ShadowOffsetX
	}
	if style.ShadowOffsetY > 0 {
		in.bottom += style.ShadowOffsetY
	} else {
		in.top -= style.ShadowOffsetY
	}
	return in
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
