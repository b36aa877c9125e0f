package subtitle

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestParseSRTBasic(t *testing.T) {
	input := "1\r\n00:00:01,000 --> 00:00:02,500\r\nمرحبا بالعالم\r\n\r\n" +
		"2\r\n00:00:03,000 --> 00:00:05,000\r\nسطر ثاني\r\n"

	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(doc.Cues))
	}
	if len(doc.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", doc.Warnings)
	}

	first := doc.Cues[0]
	if first.Index != 1 {
		t.Errorf("index = %d, want 1", first.Index)
	}
	if first.Start != time.Second {
		t.Errorf("start = %s, want 1s", first.Start)
	}
	if first.End != 2500*time.Millisecond {
		t.Errorf("end = %s, want 2.5s", first.End)
	}
	if first.Text != "مرحبا بالعالم" {
		t.Errorf("text = %q", first.Text)
	}
}

func TestParseSRTMalformedBlockSkipped(t *testing.T) {
	input := `1
00:00:01,000 --> 00:00:02,000
first

2
not a timestamp --> also broken
second

3
00:00:05,000 --> 00:00:06,000
third
`
	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Cues) != 2 {
		t.Fatalf("expected 2 valid cues, got %d", len(doc.Cues))
	}
	if len(doc.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", doc.Warnings)
	}
	// The surviving cues come through unaffected.
	if doc.Cues[0].Text != "first" || doc.Cues[1].Text != "third" {
		t.Errorf("wrong cues survived: %q, %q", doc.Cues[0].Text, doc.Cues[1].Text)
	}
	if doc.Cues[1].Start != 5*time.Second {
		t.Errorf("third cue start = %s", doc.Cues[1].Start)
	}
}

func TestParseSRTBOMAndPeriodMillis(t *testing.T) {
	input := "\ufeff1\n00:00:01.500 --> 00:00:02.000\nنص\n"

	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(doc.Cues))
	}
	if doc.Cues[0].Start != 1500*time.Millisecond {
		t.Errorf("start = %s, want 1.5s", doc.Cues[0].Start)
	}
}

func TestParseSRTMissingIndexKept(t *testing.T) {
	input := "00:00:01,000 --> 00:00:02,000\nبدون فهرس\n"

	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Cues) != 1 {
		t.Fatalf("expected 1 cue, got %d", len(doc.Cues))
	}
	if doc.Cues[0].Index != 1 {
		t.Errorf("index = %d, want renumbered 1", doc.Cues[0].Index)
	}
	if len(doc.Warnings) != 1 {
		t.Errorf("expected a missing-index warning, got %v", doc.Warnings)
	}
}

func TestParseSRTSortsAndRenumbers(t *testing.T) {
	input := `7
00:00:10,000 --> 00:00:12,000
later

7
00:00:01,000 --> 00:00:02,000
earlier
`
	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Cues) != 2 {
		t.Fatalf("expected 2 cues, got %d", len(doc.Cues))
	}
	if doc.Cues[0].Text != "earlier" || doc.Cues[1].Text != "later" {
		t.Errorf("cues not sorted by start: %q, %q", doc.Cues[0].Text, doc.Cues[1].Text)
	}
	if doc.Cues[0].Index != 1 || doc.Cues[1].Index != 2 {
		t.Errorf("indexes = %d, %d, want 1, 2", doc.Cues[0].Index, doc.Cues[1].Index)
	}
}

func TestParseSRTMultilineText(t *testing.T) {
	input := "1\n00:00:01,000 --> 00:00:02,000\nسطر أول\nسطر ثان\n"

	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if doc.Cues[0].Text != "سطر أول\nسطر ثان" {
		t.Errorf("text = %q", doc.Cues[0].Text)
	}
}

func TestParseSRTRejectsBackwardsCue(t *testing.T) {
	input := "1\n00:00:05,000 --> 00:00:04,000\nعكسي\n"

	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(doc.Cues) != 0 {
		t.Errorf("expected cue dropped, got %d", len(doc.Cues))
	}
	if len(doc.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", doc.Warnings)
	}
}

func TestFormatTimecode(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 456*time.Millisecond
	if got := FormatTimecode(d); got != "01:02:03,456" {
		t.Errorf("timecode = %q", got)
	}
	if got := FormatTimecode(-time.Second); got != "00:00:00,000" {
		t.Errorf("negative timecode = %q", got)
	}
}

func TestWriteSRTRoundTrip(t *testing.T) {
	input := "1\n00:00:01,000 --> 00:00:02,000\nواحد\n\n2\n00:00:03,500 --> 00:00:04,000\nاثنان\n"

	doc, err := ParseSRT(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteSRT(&buf, doc.Cues); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	again, err := ParseSRT(&buf)
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if len(again.Cues) != len(doc.Cues) {
		t.Fatalf("cue count changed: %d -> %d", len(doc.Cues), len(again.Cues))
	}
	for i := range doc.Cues {
		if again.Cues[i] != doc.Cues[i] {
			t.Errorf("cue %d changed: %+v -> %+v", i, doc.Cues[i], again.Cues[i])
		}
	}
}
