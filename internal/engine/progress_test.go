package engine

import (
	"testing"
	"time"
)

func TestProgressParserWithoutDuration(t *testing.T) {
	p := newProgressParser(0)
	if _, ok := p.feed("out_time_ms=5000000"); ok {
		t.Fatal("expected no event without a known duration")
	}
	ev, ok := p.feed("progress=end")
	if !ok || !ev.Done || ev.Percent != 100 {
		t.Fatalf("expected terminal event, got %+v ok=%v", ev, ok)
	}
}

func TestProgressParserETA(t *testing.T) {
	p := newProgressParser(100)
	p.feed("speed=4x")
	ev, ok := p.feed("out_time_ms=20000000")
	if !ok {
		t.Fatal("expected event")
	}
	if ev.Percent != 20 {
		t.Fatalf("unexpected percent: %v", ev.Percent)
	}
	if ev.ETA != 20*time.Second {
		t.Fatalf("unexpected ETA: %s", ev.ETA)
	}
	if ev.OutTime != 20*time.Second {
		t.Fatalf("unexpected out time: %s", ev.OutTime)
	}
}

func TestProgressParserIgnoresNoise(t *testing.T) {
	p := newProgressParser(10)
	for _, line := range []string{"", "frame=12", "nonsense", "out_time_ms=N/A", "out_time_ms=-5", "progress=continue"} {
		if _, ok := p.feed(line); ok {
			t.Fatalf("unexpected event for %q", line)
		}
	}
}

func TestParseSpeed(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"1.5x", 1.5, true},
		{"2", 2, true},
		{" 0.75x ", 0.75, true},
		{"N/A", 0, false},
		{"0x", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseSpeed(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("parseSpeed(%q) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
