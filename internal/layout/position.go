// Package layout places a rendered subtitle block on the video frame so
// that glyphs, stroke and shadow are never clipped at the edges.
package layout

import "montaj/internal/models"

// minBottomClearance is the floor on bottom clearance in pixels.
const minBottomClearance = 10

// ExtraBottomPadding is the clearance the configured effects need below the
// text box: the stroke ring, a downward shadow offset and the blur radius
// all extend past the glyph box.
func ExtraBottomPadding(style models.StyleConfig) int {
	extra := style.StrokeWidth + style.ShadowBlur
	if style.ShadowOffsetY > 0 {
		extra += style.ShadowOffsetY
	}
	return extra
}

// SafeBottomLimit is the minimum clearance kept between the text box and
// the bottom edge. Effect padding can raise it above the 10px floor,
// never below it.
func SafeBottomLimit(style models.StyleConfig) int {
	if extra := ExtraBottomPadding(style); extra > minBottomClearance {
		return extra
	}
	return minBottomClearance
}

// Place computes the on-screen box for a measured text block. The bottom
// position is clamped so the block never crosses the safe bottom limit;
// top and center clamp only to the frame itself.
func Place(videoWidth, videoHeight int, style models.StyleConfig, textWidth, textHeight int) models.BoundingBox {
	var y int
	switch style.Position {
	case models.PositionTop:
		y = style.MarginVertical
		if y+textHeight > videoHeight {
			y = videoHeight - textHeight
		}
	case models.PositionCenter:
		y = (videoHeight - textHeight) / 2
	default: // bottom
		y = videoHeight - textHeight - style.MarginVertical
		if limit := SafeBottomLimit(style); y+textHeight > videoHeight-limit {
			y = videoHeight - limit - textHeight
		}
	}
	if y < 0 {
		y = 0
	}

	var x int
	switch style.Alignment {
	case models.AlignLeft:
		x = style.MarginHorizontal
	case models.AlignRight:
		x = videoWidth - textWidth - style.MarginHorizontal
	default: // center
		x = (videoWidth - textWidth) / 2
	}
	if x > videoWidth-textWidth {
		x = videoWidth - textWidth
	}
	if x < 0 {
		x = 0
	}

	return models.BoundingBox{X: x, Y: y, Width: textWidth, Height: textHeight}
}
