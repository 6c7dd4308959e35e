package main

import (
	"strings"
	"testing"
	"time"
)

func TestRenderStatusLine(t *testing.T) {
	plain := renderStatusLine("Daemon", statusOK, "running", false)
	if !strings.Contains(plain, "Daemon:") || !strings.Contains(plain, "[OK] running") {
		t.Fatalf("unexpected line %q", plain)
	}
	if strings.Contains(plain, "\x1b[") {
		t.Fatalf("plain line contains ANSI codes: %q", plain)
	}

	colored := renderStatusLine("Daemon", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected red line, got %q", colored)
	}
}

func TestFormatCount(t *testing.T) {
	if got := formatCount(1234567); got != "1,234,567" {
		t.Fatalf("formatCount: got %q", got)
	}
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{72 * time.Hour, "3d ago"},
		{-time.Minute, "in the future"},
	}
	for _, tc := range cases {
		if got := formatAge(now.Add(-tc.ago).UnixMilli(), now); got != tc.want {
			t.Errorf("formatAge(%s): got %q want %q", tc.ago, got, tc.want)
		}
	}
}

func TestSortedEntriesNewestFirst(t *testing.T) {
	entries := sortedEntries(map[string]int64{"b": 1, "a": 1, "c": 5})
	got := []string{entries[0].ID, entries[1].ID, entries[2].ID}
	if strings.Join(got, ",") != "c,a,b" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestTitleState(t *testing.T) {
	if got := titleState("completed"); got != "Completed" {
		t.Fatalf("titleState: got %q", got)
	}
	if got := titleState(""); got != "Unknown" {
		t.Fatalf("titleState empty: got %q", got)
	}
}
