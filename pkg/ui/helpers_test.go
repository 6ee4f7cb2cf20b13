package ui

import (
	"testing"
	"time"
)

func TestFormatTimeRel(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		t    time.Time
		want string
	}{
		{"zero", time.Time{}, "unknown"},
		{"future", now.Add(time.Hour), "now"},
		{"seconds", now.Add(-30 * time.Second), "now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-48 * time.Hour), "2d ago"},
		{"weeks", now.Add(-8 * 24 * time.Hour), "1w ago"},
		{"months", now.Add(-65 * 24 * time.Hour), "2mo ago"},
	}
	for _, tc := range cases {
		if got := FormatTimeRel(tc.t); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("expected untouched string, got %q", got)
	}
	if got := truncate("a very long label", 8); got != "a very …" {
		t.Errorf("expected ellipsis truncation, got %q", got)
	}
	if got := truncate("anything", 0); got != "" {
		t.Errorf("expected empty result for zero width, got %q", got)
	}
}

func TestTruncateWideRunes(t *testing.T) {
	// CJK runes occupy two cells each
	if got := truncateRunesHelper("日本語テキスト", 7, "…"); got != "日本語…" {
		t.Errorf("expected wide-aware truncation, got %q", got)
	}
	if got := truncateRunesHelper("日本語", 6, "…"); got != "日本語" {
		t.Errorf("expected exact fit untouched, got %q", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 5); got != "ab   " {
		t.Errorf("expected padded string, got %q", got)
	}
	if got := padRight("abcdef", 5); got != "abcdef" {
		t.Errorf("expected long string untouched, got %q", got)
	}
}

func TestFormatCount(t *testing.T) {
	if got := formatCount(0, 12); got != "12" {
		t.Errorf("expected item-only count, got %q", got)
	}
	if got := formatCount(3, 12); got != "3/12" {
		t.Errorf("expected folder/item count, got %q", got)
	}
	if got := formatCount(0, 0); got != "0" {
		t.Errorf("expected zero count, got %q", got)
	}
}
