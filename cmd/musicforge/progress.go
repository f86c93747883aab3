package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/term"

	"musicforge/internal/job"
)

const defaultTerminalWidth = 80

// progressView prints one line per finished job and, on a terminal, keeps a
// live status line for the jobs still running.
type progressView struct {
	out      io.Writer
	live     bool
	colorize bool
	width    int
	total    int
	done     int
	active   map[int64]job.State
	drawn    int
}

func newProgressView(out io.Writer, total int) *progressView {
	p := &progressView{
		out:    out,
		total:  total,
		width:  defaultTerminalWidth,
		active: make(map[int64]job.State),
	}
	if shouldColorize(out) {
		p.live = true
		p.colorize = true
		if file, ok := out.(*os.File); ok {
			if width, _, err := term.GetSize(int(file.Fd())); err == nil && width > 0 {
				p.width = width
			}
		}
	}
	return p
}

func (p *progressView) update(st job.State) {
	if st.Terminal() {
		delete(p.active, st.ID)
		p.done++
		p.clear()
		fmt.Fprintln(p.out, paint(finishedLine(st, p.done, p.total), statusKindColor(jobKind(st)), p.colorize))
	} else {
		p.active[st.ID] = st
	}
	if p.live {
		p.draw()
	}
}

func (p *progressView) finish() {
	p.clear()
}

func (p *progressView) draw() {
	line := liveLine(p.active, p.done, p.total)
	line = truncate(line, p.width-1)
	n := utf8.RuneCountInString(line)
	pad := ""
	if p.drawn > n {
		pad = strings.Repeat(" ", p.drawn-n)
	}
	fmt.Fprint(p.out, "\r"+line+pad)
	p.drawn = n
}

func (p *progressView) clear() {
	if !p.live || p.drawn == 0 {
		return
	}
	fmt.Fprint(p.out, "\r"+strings.Repeat(" ", p.drawn)+"\r")
	p.drawn = 0
}

func finishedLine(st job.State, done, total int) string {
	name := filepath.Base(st.File.Path)
	prefix := fmt.Sprintf("[%d/%d] %-9s %s", done, total, strings.ToUpper(st.Status.Kind.String()), name)
	switch {
	case st.Status.Kind == job.KindCompleted && st.Output != "":
		return prefix + " -> " + st.Output
	case st.Status.Message != "":
		return prefix + ": " + st.Status.Message
	default:
		return prefix
	}
}

// liveLine summarises running jobs in ID order: name, percent, and ETA.
func liveLine(active map[int64]job.State, done, total int) string {
	running := make([]job.State, 0, len(active))
	for _, st := range active {
		if st.Status.Kind == job.KindProcessing {
			running = append(running, st)
		}
	}
	slices.SortFunc(running, func(a, b job.State) int { return cmp.Compare(a.ID, b.ID) })

	parts := []string{fmt.Sprintf("%d/%d done", done, total)}
	for _, st := range running {
		part := fmt.Sprintf("%s %.0f%%", filepath.Base(st.File.Path), st.Percent)
		if st.ETA > 0 {
			part += " eta " + st.ETA.Round(time.Second).String()
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " | ")
}

func truncate(line string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
