package subtitle

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"montaj/internal/models"
)

// timecodePattern accepts the syntax seen in SRT files in the wild:
// one- or two-digit hours and a period in place of the comma.
var timecodePattern = regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})[,.](\d{1,3})`)

// ParseSRT reads SRT leniently: UTF-8 BOM stripped, CRLF and lone CR
// accepted, blocks split on blank lines. A block with a broken timing line
// is skipped with a warning; a block without an index line is kept and
// renumbered. Cues come back sorted by start time.
func ParseSRT(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read subtitle: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	doc := &Document{Format: "srt"}
	for n, block := range splitBlocks(text) {
		cue, warn, err := parseBlock(block)
		if err != nil {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("block %d skipped: %v", n+1, err))
			continue
		}
		if warn != "" {
			doc.Warnings = append(doc.Warnings, fmt.Sprintf("block %d: %s", n+1, warn))
		}
		doc.Cues = append(doc.Cues, cue)
	}
	sortAndRenumber(doc.Cues)
	return doc, nil
}

func splitBlocks(text string) [][]string {
	var blocks [][]string
	var current []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				blocks = append(blocks, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseBlock(lines []string) (models.Cue, string, error) {
	timing := -1
	for i, line := range lines {
		if strings.Contains(line, "-->") {
			timing = i
			break
		}
	}
	if timing < 0 {
		return models.Cue{}, "", errors.New("no timing line")
	}

	parts := strings.SplitN(lines[timing], "-->", 2)
	start, err := parseTimecode(parts[0])
	if err != nil {
		return models.Cue{}, "", err
	}
	end, err := parseTimecode(parts[1])
	if err != nil {
		return models.Cue{}, "", err
	}
	if end <= start {
		return models.Cue{}, "", fmt.Errorf("end %s not after start %s",
			FormatTimecode(end), FormatTimecode(start))
	}

	text := strings.TrimSpace(strings.Join(lines[timing+1:], "\n"))
	if text == "" {
		return models.Cue{}, "", errors.New("empty text")
	}

	var warn string
	if timing == 0 {
		warn = "missing index"
	} else if _, err := strconv.Atoi(strings.TrimSpace(lines[timing-1])); err != nil {
		warn = fmt.Sprintf("non-numeric index %q", strings.TrimSpace(lines[timing-1]))
	}
	return models.Cue{Start: start, End: end, Text: text}, warn, nil
}

func parseTimecode(s string) (time.Duration, error) {
	m := timecodePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bad timecode %q", strings.TrimSpace(s))
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	sec, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4] + strings.Repeat("0", 3-len(m[4])))
	return time.Duration(h)*time.Hour +
		time.Duration(min)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// FormatTimecode renders a duration as a canonical SRT timestamp.
func FormatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	min := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, min, sec, ms)
}

// WriteSRT serializes cues back to canonical SRT.
func WriteSRT(w io.Writer, cues []models.Cue) error {
	for i, cue := range cues {
		idx := cue.Index
		if idx == 0 {
			idx = i + 1
		}
		_, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			idx, FormatTimecode(cue.Start), FormatTimecode(cue.End), cue.Text)
		if err != nil {
			return fmt.Errorf("write cue %d: %w", idx, err)
		}
	}
	return nil
}
