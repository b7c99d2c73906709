package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"aplose/internal/preflight"
)

type reportLevel int

const (
	levelInfo reportLevel = iota
	levelOK
	levelWarn
	levelFail
)

var levelStyles = map[reportLevel]struct {
	tag    string
	colors text.Colors
}{
	levelInfo: {"INFO", text.Colors{text.FgBlue}},
	levelOK:   {"OK", text.Colors{text.FgGreen}},
	levelWarn: {"WARN", text.Colors{text.FgYellow}},
	levelFail: {"ERROR", text.Colors{text.FgRed}},
}

const reportLabelWidth = 20

// report collects the sections printed by "aplose status" and
// "aplose db health". Colours are only used on terminals.
type report struct {
	colorize bool
	lines    []string
}

func newReport(w io.Writer) *report {
	return &report{colorize: isTerminal(w)}
}

func (r *report) section(title string) {
	if len(r.lines) > 0 {
		r.lines = append(r.lines, "")
	}
	heading := "== " + strings.TrimSpace(title) + " =="
	r.lines = append(r.lines,
		r.paint(text.Colors{text.FgBlue, text.Bold}, heading),
		strings.Repeat("-", len(heading)),
	)
}

func (r *report) add(level reportLevel, label, message string) {
	style := levelStyles[level]
	line := fmt.Sprintf("  %-*s [%s]", reportLabelWidth, label+":", style.tag)
	if message != "" {
		line += " " + message
	}
	r.lines = append(r.lines, r.paint(style.colors, line))
}

// checks appends one line per preflight result and reports whether every
// check passed.
func (r *report) checks(results []preflight.Result) bool {
	for _, result := range results {
		level := levelOK
		if !result.Passed {
			level = levelFail
		}
		r.add(level, result.Name, result.Detail)
	}
	return preflight.AllPassed(results)
}

func (r *report) paint(colors text.Colors, s string) string {
	if !r.colorize {
		return s
	}
	return colors.Sprint(s)
}

func (r *report) writeTo(w io.Writer) {
	fmt.Fprintln(w, strings.Join(r.lines, "\n"))
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
