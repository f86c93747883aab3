package engine

import (
	"strconv"
	"strings"
	"time"
)

// Progress is one progress observation for a running engine invocation.
type Progress struct {
	// Percent is in [0, 100] and never decreases within a run.
	Percent float64
	// ETA is the estimated time remaining; zero when speed is unknown.
	ETA time.Duration
	// OutTime is how much of the source has been processed.
	OutTime time.Duration
	// Speed is the processing speed relative to realtime; zero when unknown.
	Speed float64
	// Done is set on the terminal progress=end event.
	Done bool
}

// progressParser folds `-progress` key=value lines into Progress events.
type progressParser struct {
	total   float64
	outTime float64
	speed   float64
	percent float64
}

func newProgressParser(totalSeconds float64) *progressParser {
	return &progressParser{total: totalSeconds}
}

// feed consumes one stdout line and reports an event when one is due.
func (p *progressParser) feed(line string) (Progress, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return Progress{}, false
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "speed":
		if speed, ok := parseSpeed(value); ok {
			p.speed = speed
		}
		return Progress{}, false
	case "out_time_ms":
		micros, err := strconv.ParseFloat(value, 64)
		if err != nil || micros < 0 {
			return Progress{}, false
		}
		p.outTime = micros / 1e6
		if p.total <= 0 {
			return Progress{}, false
		}
		percent := clamp(p.outTime/p.total*100, 0, 100)
		if percent > p.percent {
			p.percent = percent
		}
		return p.event(false), true
	case "progress":
		if value != "end" {
			return Progress{}, false
		}
		p.percent = 100
		return p.event(true), true
	}
	return Progress{}, false
}

func (p *progressParser) event(done bool) Progress {
	ev := Progress{
		Percent: p.percent,
		OutTime: time.Duration(p.outTime * float64(time.Second)),
		Speed:   p.speed,
		Done:    done,
	}
	if p.speed > 0 && p.total > 0 && !done {
		remaining := (p.total - p.outTime) / p.speed
		if remaining > 0 {
			ev.ETA = time.Duration(remaining * float64(time.Second))
		}
	}
	return ev
}

// parseSpeed accepts "1.5x", "1.5", and rejects "N/A".
func parseSpeed(value string) (float64, bool) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "x")
	speed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
