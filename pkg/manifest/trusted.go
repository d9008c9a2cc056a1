// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

// FileURIPrefix is the scheme marker for trusted-file entries.
const FileURIPrefix = "file:"

var (
	// sgx.trusted_files = [ ... ], fully-qualified dialect.
	dottedTrustedOpenPattern = regexp.MustCompile(`^\s*sgx\.trusted_files\s*=\s*\[`)

	// trusted_files = [ ... ], bare-key dialect inside the [sgx] table.
	bareTrustedOpenPattern = regexp.MustCompile(`^\s*trusted_files\s*=\s*\[`)

	// Any sgx-scoped dotted key; the last such line anchors array synthesis
	// in the dotted dialect.
	dottedSGXKeyPattern = regexp.MustCompile(`^\s*sgx\.`)
)

// TrustedFileEntry formats libPath as a trusted-files array entry.
func TrustedFileEntry(libPath string) string {
	return fmt.Sprintf(`"%s%s"`, FileURIPrefix, libPath)
}

// EnsureTrustedFile ensures a file-scheme entry for libPath exists in the
// sgx.trusted_files array, preserving all existing entries. When the array
// exists its closing bracket is located by depth tracking and the entry is
// inserted just before it; single-line arrays are rewritten in place. When
// no array exists one is synthesized: inside an existing [sgx] table as a
// bare key, after the last sgx.-prefixed dotted line otherwise, or at the
// end of the document as a last resort.
func (d *TextDocument) EnsureTrustedFile(libPath string) bool {
	entry := TrustedFileEntry(libPath)
	if d.Contains(entry) {
		return false
	}

	if i, ok := d.findTrustedFilesOpen(); ok {
		d.insertArrayEntry(i, entry)
		return true
	}

	d.synthesizeTrustedFiles(entry)
	return true
}

// findTrustedFilesOpen locates the line opening the trusted-files array.
// The dotted form matches anywhere; the bare form only inside [sgx].
func (d *TextDocument) findTrustedFilesOpen() (int, bool) {
	var section sectionContext
	for i, line := range d.lines {
		if isComment(line) {
			section.observe(line)
			continue
		}
		if dottedTrustedOpenPattern.MatchString(line) {
			return i, true
		}
		if section.name == attestationTable && bareTrustedOpenPattern.MatchString(line) {
			return i, true
		}
		section.observe(line)
	}
	return 0, false
}

// arrayClosing finds the line index of the closing bracket for the array
// opening at index open. Depth starts at one upon the opening bracket; when
// the opening line itself brings it back to zero the array is single-line
// and open is returned.
func (d *TextDocument) arrayClosing(open int) int {
	line := d.lines[open]
	afterAssign := line[strings.Index(line, "[")+1:]

	depth := 1 + bracketDelta(afterAssign)
	if depth <= 0 {
		return open
	}
	for j := open + 1; j < len(d.lines); j++ {
		depth += bracketDelta(d.lines[j])
		if depth <= 0 {
			return j
		}
	}
	return len(d.lines) - 1
}

// insertArrayEntry adds entry to the array opening at line index open,
// matching sibling indentation and trailing-comma style.
func (d *TextDocument) insertArrayEntry(open int, entry string) {
	closing := d.arrayClosing(open)
	if closing == open {
		d.lines[open] = insertInline(d.lines[open], entry)
		return
	}

	// Sibling style: indentation from the last entry line, and whether
	// entries carry trailing commas. Comment lines are not entries.
	indent := "  "
	lastEntry := -1
	for j := closing - 1; j > open; j-- {
		if strings.TrimSpace(d.lines[j]) != "" && !isComment(d.lines[j]) {
			lastEntry = j
			break
		}
	}

	withComma := true
	if lastEntry >= 0 {
		indent = leadingWhitespace(d.lines[lastEntry])
		code := d.lines[lastEntry]
		comment := ""
		if ci := unquotedCommentIndex(code); ci >= 0 {
			code, comment = code[:ci], code[ci:]
		}
		trimmed := strings.TrimRight(code, " \t")
		if !strings.HasSuffix(trimmed, ",") {
			// Separate ourselves from the sibling; its own style stays
			// comma-free so we go without one too. Any trailing comment
			// stays behind the comma.
			d.lines[lastEntry] = trimmed + "," + code[len(trimmed):] + comment
			withComma = false
		}
	}

	newLine := indent + entry
	if withComma {
		newLine += ","
	}
	d.insert(closing, newLine)
}

// insertInline rewrites a single-line array, placing entry before the final
// closing bracket.
func insertInline(line, entry string) string {
	idx := strings.LastIndex(line, "]")
	if idx < 0 {
		return line
	}
	head := strings.TrimRight(line[:idx], " \t")
	tail := line[idx:]
	switch {
	case strings.HasSuffix(head, "["):
		return head + entry + tail
	case strings.HasSuffix(head, ","):
		return head + " " + entry + tail
	default:
		return head + ", " + entry + tail
	}
}

// synthesizeTrustedFiles creates a fresh trusted-files array holding entry.
// The insertion point is dialect-aware so the result stays valid in either
// manifest dialect.
func (d *TextDocument) synthesizeTrustedFiles(entry string) {
	// Grouped-table dialect: append a bare array at the end of [sgx].
	if header, ok := d.findHeader(attestationTable); ok {
		end := header
		for j := header + 1; j < len(d.lines); j++ {
			if strings.TrimSpace(d.lines[j]) == "" || isBracketHeader(d.lines[j]) {
				break
			}
			end = j
		}
		d.insert(end+1, "trusted_files = [", "  "+entry+",", "]")
		return
	}

	// Dotted dialect: after the last sgx.-prefixed line.
	last := -1
	for i, line := range d.lines {
		if dottedSGXKeyPattern.MatchString(line) {
			last = i
		}
	}
	if last >= 0 {
		d.insert(last+1, "", "sgx.trusted_files = [", "  "+entry+",", "]")
		return
	}

	// No recognizable anchor: append at the end unconditionally.
	d.insert(len(d.lines), "", "sgx.trusted_files = [", "  "+entry+",", "]")
}

// findHeader returns the index of the first bracketed header with the given
// table name.
func (d *TextDocument) findHeader(name string) (int, bool) {
	for i, line := range d.lines {
		if isComment(line) {
			continue
		}
		if strings.EqualFold(headerName(line), name) {
			return i, true
		}
	}
	return 0, false
}
