// Package subtitle reads timed cue files. SRT goes through a lenient hand
// parser; WebVTT, SSA/ASS, TTML and STL parse through go-astisub and map to
// the same cue type.
package subtitle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/asticode/go-astisub"

	"montaj/internal/models"
)

// ErrUnsupportedFormat marks files this package cannot read at all, as
// opposed to malformed blocks inside a supported file, which are skipped.
var ErrUnsupportedFormat = errors.New("unsupported subtitle format")

// Document is the result of parsing one subtitle file: the surviving cues,
// the detected format, and a warning per skipped or repaired block.
type Document struct {
	Cues     []models.Cue
	Format   string
	Warnings []string
}

var astisubFormats = map[string]string{
	".vtt":  "webvtt",
	".ssa":  "ssa",
	".ass":  "ass",
	".ttml": "ttml",
	".stl":  "stl",
}

// Open parses the subtitle file at path, routing on the file extension.
func Open(path string) (*Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".srt":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open subtitle: %w", err)
		}
		defer f.Close()
		return ParseSRT(f)
	case astisubFormats[ext] != "":
		return openAstisub(path, astisubFormats[ext])
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func openAstisub(path, format string) (*Document, error) {
	subs, err := astisub.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("parse %s subtitle: %w", format, err)
	}

	doc := &Document{Format: format}
	for n, item := range subs.Items {
		lines := make([]string, len(item.Lines))
		for i, line := range item.Lines {
			lines[i] = line.String()
		}
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		switch {
		case text == "":
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("item %d skipped: empty text", n+1))
		case item.EndAt <= item.StartAt:
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("item %d skipped: end not after start", n+1))
		default:
			doc.Cues = append(doc.Cues, models.Cue{
				Start: item.StartAt,
				End:   item.EndAt,
				Text:  text,
			})
		}
	}
	sortAndRenumber(doc.Cues)
	return doc, nil
}

// sortAndRenumber orders cues by start time and assigns sequential indexes.
// Stable sort keeps file order for cues that share a start time.
func sortAndRenumber(cues []models.Cue) {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
	for i := range cues {
		cues[i].Index = i + 1
	}
}
