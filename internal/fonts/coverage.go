package fonts

import (
	"bytes"

	"github.com/go-text/typesetting/font"
)

// arabicProbe holds the code points a family must map to count as
// Arabic-capable: a base letter plus the presentation forms the reshaper
// actually emits, ligature included.
var arabicProbe = []rune{
	0x0628, // beh
	0xFE8D, // alef, isolated form
	0xFEE1, // meem, isolated form
	0xFEFC, // lam-alef ligature, final form
}

// coversArabic parses the raw font and checks the probe set against its
// character map.
func coversArabic(data []byte) bool {
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return false
	}
	for _, r := range arabicProbe {
		if _, ok := face.NominalGlyph(r); !ok {
			return false
		}
	}
	return true
}
