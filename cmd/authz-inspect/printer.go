package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// printer writes the report. Colors and the rule width follow the terminal;
// redirected output stays plain.
type printer struct {
	w     io.Writer
	color bool
	width int
}

func newPrinter(f *os.File, noColor bool) *printer {
	p := &printer{w: f, width: 72}
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return p
	}
	p.color = !noColor && os.Getenv("NO_COLOR") == ""
	if w, _, err := term.GetSize(fd); err == nil && w > 20 {
		p.width = min(w, 120)
	}
	return p
}

func (p *printer) paint(color, s string) string {
	if !p.color || s == "" {
		return s
	}
	return color + s + colorReset
}

func (p *printer) header(title string) {
	fmt.Fprintln(p.w)
	fmt.Fprintln(p.w, p.paint(colorBold, title))
	fmt.Fprintln(p.w, p.paint(colorDim, strings.Repeat("─", p.width)))
}

func (p *printer) field(name, value string) {
	fmt.Fprintf(p.w, "  %-18s %s\n", name+":", value)
}

func (p *printer) good(s string) { fmt.Fprintln(p.w, p.paint(colorGreen, s)) }

func (p *printer) bad(s string) { fmt.Fprintln(p.w, p.paint(colorRed, s)) }
