// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"strings"
)

type (
	// Document is the dialect-neutral view of a manifest that the injection
	// pipeline operates on. TextDocument implements it over raw manifest
	// text; MapDocument implements it over a nested mapping.
	Document interface {
		// Attested reports whether the manifest configures DCAP remote
		// attestation.
		Attested() bool

		// Contains reports whether the literal string s already occurs in
		// the document. The idempotency guard uses this with the resolved
		// library path: any prior injection leaves the path present
		// verbatim.
		Contains(s string) bool

		// PrependPreload ensures libPath is the first colon-delimited entry
		// of the preload environment declaration, creating the declaration
		// if absent. Returns true if the document was modified.
		PrependPreload(libPath string) bool

		// EnsureTrustedFile ensures a "file:<libPath>" entry exists in the
		// trusted-files array, creating the array if absent. Returns true
		// if the document was modified.
		EnsureTrustedFile(libPath string) bool
	}

	// TextDocument is an ordered sequence of manifest lines, mutable in
	// place. Line order is semantically significant: dialect detection and
	// array boundaries depend on position.
	TextDocument struct {
		lines       []string
		eol         string
		trailingEOL bool
	}
)

// NewTextDocument splits manifest text into lines, remembering the input's
// line-ending convention so String reproduces it.
func NewTextDocument(text string) *TextDocument {
	eol := "\n"
	if strings.Contains(text, "\r\n") {
		eol = "\r\n"
	}
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	trailing := strings.HasSuffix(normalized, "\n")
	normalized = strings.TrimSuffix(normalized, "\n")

	var lines []string
	if normalized != "" || trailing {
		lines = strings.Split(normalized, "\n")
	}

	return &TextDocument{lines: lines, eol: eol, trailingEOL: trailing}
}

// String reassembles the document using the input's line-ending convention.
func (d *TextDocument) String() string {
	out := strings.Join(d.lines, d.eol)
	if d.trailingEOL {
		out += d.eol
	}
	return out
}

// Len returns the number of lines in the document.
func (d *TextDocument) Len() int {
	return len(d.lines)
}

// Contains reports whether s occurs verbatim anywhere in the document.
func (d *TextDocument) Contains(s string) bool {
	for _, line := range d.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// insert places line at index i, shifting subsequent lines down.
func (d *TextDocument) insert(i int, line ...string) {
	if i > len(d.lines) {
		i = len(d.lines)
	}
	d.lines = append(d.lines[:i], append(append([]string{}, line...), d.lines[i:]...)...)
}

// isComment reports whether a line is a manifest comment.
func isComment(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

// isBracketHeader reports whether a line is a bracketed table header, e.g.
// "[sgx]" or "[loader.env]". Array-of-table headers ("[[...]]") count too:
// any header terminates the previous table.
func isBracketHeader(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")
}

// headerName extracts the table name from a bracketed header line,
// lower-cased. Returns "" for non-header lines.
func headerName(line string) string {
	if !isBracketHeader(line) {
		return ""
	}
	trimmed := strings.TrimSpace(line)
	return strings.ToLower(strings.TrimSpace(trimmed[1 : len(trimmed)-1]))
}

// sectionContext is ephemeral scan state: the name of the currently-open
// bracketed table. Only the next bracket header closes a table; blank lines
// do not, a table's keys may be separated by any amount of whitespace. It
// is recomputed on each scan and never persisted.
type sectionContext struct {
	name string
}

// observe updates the context with the next line of a top-to-bottom scan.
func (s *sectionContext) observe(line string) {
	if isBracketHeader(line) {
		s.name = headerName(line)
	}
}

// bracketDelta returns the count of opening minus closing square brackets
// on a line, ignoring brackets inside double-quoted strings and brackets
// after a comment marker. Used for multi-line array boundary tracking.
func bracketDelta(line string) int {
	delta := 0
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			// Basic strings only; Gramine manifests do not use literal
			// single-quoted strings for trusted-file entries.
			if i == 0 || line[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '#':
			if !inQuote {
				return delta
			}
		case '[':
			if !inQuote {
				delta++
			}
		case ']':
			if !inQuote {
				delta--
			}
		}
	}
	return delta
}

// unquotedCommentIndex returns the index of the first comment marker outside
// double quotes, or -1 when the line carries no comment.
func unquotedCommentIndex(line string) int {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			if i == 0 || line[i-1] != '\\' {
				inQuote = !inQuote
			}
		case '#':
			if !inQuote {
				return i
			}
		}
	}
	return -1
}

// leadingWhitespace returns the run of spaces and tabs at the start of line.
func leadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
