// Package arabic prepares subtitle text for rasterization: contextual
// reshaping of Arabic letters into their Unicode presentation forms,
// followed by bidirectional reordering into left-to-right visual order.
package arabic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Provider identifies which member of the shaping chain produced a result.
type Provider string

const (
	ProviderReshapeBidi Provider = "reshape+bidi"
	ProviderBidiOnly    Provider = "bidi"
	ProviderIdentity    Provider = "identity"
)

// ShapedText is a display-ready string together with the provider that
// produced it, so fallbacks stay observable downstream.
type ShapedText struct {
	Display  string   `json:"display"`
	Provider Provider `json:"provider"`
}

// Options configure a Shaper.
type Options struct {
	// Normalize folds alef variants, teh marbuta and yeh variants into
	// their plain forms before shaping. Off for display text unless asked.
	Normalize bool
	// DeleteHarakat drops vowel marks instead of carrying them through.
	DeleteHarakat bool
}

type provider struct {
	name Provider
	fn   func(string) (string, error)
}

// Shaper runs text through an ordered provider chain: full reshape plus
// bidi, bidi-only, then identity. Each provider that fails hands over to
// the next; identity cannot fail, so a render never aborts on shaping.
type Shaper struct {
	log       *zap.Logger
	opts      Options
	providers []provider
}

// NewShaper builds the default provider chain.
func NewShaper(log *zap.Logger, opts Options) *Shaper {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Shaper{log: log, opts: opts}
	s.providers = []provider{
		{ProviderReshapeBidi, s.reshapeBidi},
		{ProviderBidiOnly, bidiOnly},
		{ProviderIdentity, func(text string) (string, error) { return text, nil }},
	}
	return s
}

// Shape cleans text and converts it to visual order. It fails open: when a
// provider errors the next one takes over, and the original text comes back
// under ProviderIdentity in the worst case.
func (s *Shaper) Shape(text string) ShapedText {
	text = Clean(text)
	if s.opts.Normalize {
		text = Normalize(text)
	}
	for _, p := range s.providers {
		out, err := p.fn(text)
		if err != nil {
			s.log.Warn("shaping provider failed",
				zap.String("provider", string(p.name)),
				zap.Error(err))
			continue
		}
		return ShapedText{Display: out, Provider: p.name}
	}
	return ShapedText{Display: text, Provider: ProviderIdentity}
}

// reshapeBidi shapes line by line so paragraph state never leaks across
// line breaks.
func (s *Shaper) reshapeBidi(text string) (string, error) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		vis, err := visualOrder(reshapeLine(line, s.opts.DeleteHarakat))
		if err != nil {
			return "", err
		}
		lines[i] = vis
	}
	return strings.Join(lines, "\n"), nil
}

func bidiOnly(text string) (string, error) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		vis, err := visualOrder(line)
		if err != nil {
			return "", err
		}
		lines[i] = vis
	}
	return strings.Join(lines, "\n"), nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Clean strips markup tags and collapses whitespace runs within each line.
// SRT files in the wild carry <i> and <font> tags that must not reach the
// rasterizer. Blank lines are dropped; line structure is otherwise kept.
func Clean(text string) string {
	text = tagPattern.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

var normalizer = strings.NewReplacer(
	"آ", "ا", // alef with madda
	"أ", "ا", // alef with hamza above
	"إ", "ا", // alef with hamza below
	"ٱ", "ا", // alef wasla
	"ة", "ه", // teh marbuta to heh
	"ئ", "ي", // yeh with hamza to yeh
	"ى", "ي", // alef maksura to yeh
)

// Normalize folds common letter variants into their plain forms, for
// matching surfaces rather than display.
func Normalize(text string) string {
	return normalizer.Replace(text)
}

// Wrap greedily fills lines up to maxChars runes, counting the joining
// spaces. A single word longer than maxChars gets its own line unbroken.
func Wrap(text string, maxChars int) []string {
	var (
		lines   []string
		current []string
		length  int
	)
	for _, word := range strings.Fields(text) {
		n := utf8.RuneCountInString(word)
		if len(current) > 0 && length+n+len(current) > maxChars {
			lines = append(lines, strings.Join(current, " "))
			current, length = nil, 0
		}
		current = append(current, word)
		length += n
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}
	return lines
}

// ContainsArabic reports whether any rune falls in the Arabic Unicode
// blocks, presentation forms included.
func ContainsArabic(text string) bool {
	for _, r := range text {
		if (r >= 0x0600 && r <= 0x06FF) ||
			(r >= 0x0750 && r <= 0x077F) ||
			(r >= 0x08A0 && r <= 0x08FF) ||
			(r >= 0xFB50 && r <= 0xFDFF) ||
			(r >= 0xFE70 && r <= 0xFEFF) {
			return true
		}
	}
	return false
}
