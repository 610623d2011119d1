// Package diag formats compiler and runtime diagnostics against their
// originating source line: "path:line:column: Error at 'lexeme': message", the offending
// source line, and a caret underline beneath the exact token.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/erkao-lang/erkao/internal/token"
)

// Reporter renders diagnostics against one source file's text.
type Reporter struct {
	Path   string
	Source string
	Out    io.Writer
	Color  bool
}

// NewReporter builds a Reporter over source, enabling color unless
// fatih/color's package-wide color.NoColor is set (NO_COLOR, or stdout
// not being a terminal). out itself is not inspected.
func NewReporter(path, source string, out io.Writer) *Reporter {
	return &Reporter{Path: path, Source: source, Out: out, Color: !color.NoColor}
}

func (r *Reporter) displayPath() string {
	if r.Path == "" {
		return "<repl>"
	}
	return r.Path
}

// sourceLine returns the 1-indexed line text, or "" if line is out of
// range (e.g. a synthetic token with no backing source).
func (r *Reporter) sourceLine(line int) string {
	lines := strings.Split(r.Source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return lines[line-1]
}

// Report writes one diagnostic: `path:line:col: Error at 'lexeme': message`
// followed by the source line and a caret underline under the token,
// colorized in red when Color is set.
func (r *Reporter) Report(tok token.Token, message string) {
	header := fmt.Sprintf("%s:%d:%d: Error at '%s': %s", r.displayPath(), tok.Line, tok.Column, tok.Lexeme, message)
	if r.Color {
		header = color.New(color.FgRed, color.Bold).Sprint(header)
	}
	fmt.Fprintln(r.Out, header)

	line := r.sourceLine(tok.Line)
	if line == "" {
		return
	}
	fmt.Fprintln(r.Out, line)

	col := tok.Column - 1
	if col < 0 {
		col = 0
	}
	width := len(tok.Lexeme)
	if width < 1 {
		width = 1
	}
	caret := strings.Repeat(" ", col) + strings.Repeat("^", width)
	if r.Color {
		caret = color.New(color.FgGreen, color.Bold).Sprint(caret)
	}
	fmt.Fprintln(r.Out, caret)
}

// Diagnostic is the plain (token, message) pair Reporter needs. Both
// compiler.CompileError and typecheck.Error already carry exported
// Token/Message fields of this same shape; callers convert with a
// one-line literal rather than diag importing either package back
// (which would create a cycle — diag stays a dependency-free leaf).
type Diagnostic struct {
	Tok     token.Token
	Message string
}

// ReportAll renders every diagnostic in ds in order.
func (r *Reporter) ReportAll(ds []Diagnostic) {
	for _, d := range ds {
		r.Report(d.Tok, d.Message)
	}
}
