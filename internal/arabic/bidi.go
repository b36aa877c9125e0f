package arabic

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/bidi"
)

// visualOrder flattens one line into left-to-right visual order. Runs come
// back from the paragraph in reading order, so a right-to-left base line is
// walked from the last run; RTL run contents are reversed with bracket
// mirroring, modifiers staying attached to their base.
func visualOrder(line string) (string, error) {
	if line == "" {
		return "", nil
	}
	var p bidi.Paragraph
	if _, err := p.SetString(line); err != nil {
		return "", fmt.Errorf("set paragraph: %w", err)
	}
	ordering, err := p.Order()
	if err != nil {
		return "", fmt.Errorf("order paragraph: %w", err)
	}
	n := ordering.NumRuns()
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < n; i++ {
		idx := i
		if !p.IsLeftToRight() {
			idx = n - 1 - i
		}
		run := ordering.Run(idx)
		if run.Direction() == bidi.RightToLeft {
			b.WriteString(bidi.ReverseString(run.String()))
		} else {
			b.WriteString(run.String())
		}
	}
	return b.String(), nil
}
