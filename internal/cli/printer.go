package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successStyle = color.New(color.FgGreen, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	warnStyle    = color.New(color.FgYellow, color.Bold)
	infoStyle    = color.New(color.FgBlue, color.Bold)
	dimStyle     = color.New(color.Faint)
)

// Printer writes status messages. Compiled prompts go to out; everything
// else goes to errOut so piped output stays clean.
type Printer struct {
	out     io.Writer
	errOut  io.Writer
	verbose bool
}

// NewPrinter constructs a printer over the given streams.
func NewPrinter(out, errOut io.Writer, verbose bool) *Printer {
	return &Printer{out: out, errOut: errOut, verbose: verbose}
}

func (p *Printer) Successf(format string, args ...any) {
	successStyle.Fprintf(p.errOut, "[SUCCESS] "+format+"\n", args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	errorStyle.Fprintf(p.errOut, "[ERROR] "+format+"\n", args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	warnStyle.Fprintf(p.errOut, "[WARNING] "+format+"\n", args...)
}

func (p *Printer) Infof(format string, args ...any) {
	infoStyle.Fprintf(p.errOut, "[INFO] "+format+"\n", args...)
}

// Detailf prints supplementary detail only in verbose mode.
func (p *Printer) Detailf(format string, args ...any) {
	if !p.verbose {
		return
	}
	dimStyle.Fprintf(p.errOut, format+"\n", args...)
}

// Plainf writes unstyled text to the error stream.
func (p *Printer) Plainf(format string, args ...any) {
	fmt.Fprintf(p.errOut, format+"\n", args...)
}

// Promptf writes to the output stream.
func (p *Printer) Promptf(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}
