package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"github.com/erkao-lang/erkao/internal/token"
)

func TestReportIncludesSourceLineAndCaret(t *testing.T) {
	oldNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = oldNoColor }()

	src := "let x = 1;\nlet y = nope;\n"
	var buf bytes.Buffer
	r := NewReporter("prog.erk", src, &buf)

	tok := token.Token{Kind: token.IDENT, Lexeme: "nope", Line: 2, Column: 9}
	r.Report(tok, "undefined variable 'nope'")

	out := buf.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "prog.erk:2:9: Error at 'nope': undefined variable 'nope'")
	require.Equal(t, "let y = nope;", lines[1])
	require.Equal(t, strings.Repeat(" ", 8)+strings.Repeat("^", 4), lines[2])
}

func TestReportOnSyntheticTokenOmitsSourceLine(t *testing.T) {
	oldNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = oldNoColor }()
	var buf bytes.Buffer
	r := NewReporter("", "only one line", &buf)

	tok := token.Token{Kind: token.EOF, Lexeme: "", Line: 99, Column: 1}
	r.Report(tok, "unexpected end of input")

	out := strings.TrimRight(buf.String(), "\n")
	require.Equal(t, 1, len(strings.Split(out, "\n")))
	require.Contains(t, out, "<repl>:99:1")
}

func TestReportAllRendersEveryDiagnostic(t *testing.T) {
	oldNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = oldNoColor }()
	var buf bytes.Buffer
	r := NewReporter("prog.erk", "a\nb\n", &buf)

	r.ReportAll([]Diagnostic{
		{Tok: token.Token{Lexeme: "a", Line: 1, Column: 1}, Message: "first"},
		{Tok: token.Token{Lexeme: "b", Line: 2, Column: 1}, Message: "second"},
	})

	out := buf.String()
	require.Contains(t, out, "first")
	require.Contains(t, out, "second")
}
