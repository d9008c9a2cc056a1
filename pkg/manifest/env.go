// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// loader.env.LD_PRELOAD = "..." or libos.env.LD_PRELOAD = "...". Older
	// Gramine releases used the libos prefix; both are authoritative.
	dottedPreloadPattern = regexp.MustCompile(`^(\s*(?:loader|libos)\.env\.LD_PRELOAD\s*=\s*")([^"]*)(".*)$`)

	// Bare LD_PRELOAD = "..." inside a [loader.env] / [libos.env] table.
	barePreloadPattern = regexp.MustCompile(`^(\s*LD_PRELOAD\s*=\s*")([^"]*)(".*)$`)

	// Environment sub-table headers in the grouped-table dialect.
	envTablePattern = regexp.MustCompile(`^\s*\[(?:loader|libos)\.env\]\s*$`)

	// loader.env = [ "VAR=value", ... ], the array-of-strings dialect some
	// generators emit instead of a sub-table.
	envArrayOpenPattern = regexp.MustCompile(`^\s*(?:loader|libos)\.env\s*=\s*\[`)

	// An LD_PRELOAD element inside the array dialect.
	envArrayPreloadPattern = regexp.MustCompile(`"LD_PRELOAD=([^"]*)"`)

	// Any fully-qualified environment-scoped key; the last such line anchors
	// the fallback insertion of a fresh LD_PRELOAD assignment.
	dottedEnvKeyPattern = regexp.MustCompile(`^\s*(?:loader|libos)\.env\.`)

	// Process entry-point declarations, the second-level fallback anchor.
	entrypointPattern = regexp.MustCompile(`^\s*(?:libos|loader)\.entrypoint\s*=`)
)

// PrependPreload ensures libPath is the first colon-delimited entry of the
// LD_PRELOAD declaration, preserving existing entries in order. The first
// matching declaration wins; dialects are tried in this order:
//
//  1. A fully-qualified loader.env.LD_PRELOAD / libos.env.LD_PRELOAD
//     assignment anywhere in the document.
//  2. A loader.env = [ "VAR=value", ... ] array: the "LD_PRELOAD=..."
//     element is rewritten, or a fresh element is appended to the array.
//  3. A bare LD_PRELOAD key inside a [loader.env] / [libos.env] table; if
//     the table exists without the key, a fresh key is inserted right after
//     the table header.
//  4. None exists: a new loader.env.LD_PRELOAD assignment is appended
//     after the last environment-scoped dotted key, failing that after the
//     entry-point declaration, failing that at the start of the document.
//
// Returns false when the declaration already contains libPath.
func (d *TextDocument) PrependPreload(libPath string) bool {
	// Dotted form.
	for i, line := range d.lines {
		m := dottedPreloadPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rewritten, ok := prependToValue(m, libPath)
		if !ok {
			return false
		}
		d.lines[i] = rewritten
		return true
	}

	// Array form. Handled before the fallback cascade: synthesizing a dotted
	// loader.env.LD_PRELOAD key next to a loader.env array would redefine
	// the key and break the manifest.
	if modified, handled := d.prependInEnvArray(libPath); handled {
		return modified
	}

	// Table form.
	if modified, handled := d.prependInEnvTable(libPath); handled {
		return modified
	}

	// Absent entirely: fall back through the insertion anchors.
	newLine := fmt.Sprintf(`loader.env.LD_PRELOAD = "%s"`, libPath)

	lastEnvKey := -1
	for i, line := range d.lines {
		if dottedEnvKeyPattern.MatchString(line) {
			lastEnvKey = i
		}
	}
	if lastEnvKey >= 0 {
		d.insert(lastEnvKey+1, newLine)
		return true
	}

	for i, line := range d.lines {
		if entrypointPattern.MatchString(line) {
			d.insert(i+1, newLine)
			return true
		}
	}

	// No recognizable anchor at all; an empty document appends, anything
	// else gets the declaration up front.
	d.insert(0, newLine)
	return true
}

// prependInEnvArray handles the array-of-strings dialect. The second return
// value reports whether an environment array was found at all; when false
// the caller proceeds to the remaining dialects.
func (d *TextDocument) prependInEnvArray(libPath string) (modified, handled bool) {
	for i, line := range d.lines {
		if !envArrayOpenPattern.MatchString(line) {
			continue
		}

		// An existing "LD_PRELOAD=..." element is rewritten in place.
		closing := d.arrayClosing(i)
		for j := i; j <= closing; j++ {
			m := envArrayPreloadPattern.FindStringSubmatch(d.lines[j])
			if m == nil {
				continue
			}
			value := m[1]
			if strings.Contains(value, libPath) {
				return false, true
			}
			newValue := libPath
			if value != "" {
				newValue = libPath + ":" + value
			}
			d.lines[j] = strings.Replace(d.lines[j],
				`"LD_PRELOAD=`+value+`"`, `"LD_PRELOAD=`+newValue+`"`, 1)
			return true, true
		}

		// No element yet: append one to the array.
		d.insertArrayEntry(i, fmt.Sprintf(`"LD_PRELOAD=%s"`, libPath))
		return true, true
	}

	return false, false
}

// prependInEnvTable handles the grouped-table dialect. The second return
// value reports whether an environment table was found at all; when false
// the caller proceeds to the dotted fallback cascade.
func (d *TextDocument) prependInEnvTable(libPath string) (modified, handled bool) {
	for i, line := range d.lines {
		if !envTablePattern.MatchString(line) {
			continue
		}

		// The table runs until the next bracket header; blank lines do not
		// close a table.
		for j := i + 1; j < len(d.lines); j++ {
			if isBracketHeader(d.lines[j]) {
				break
			}
			m := barePreloadPattern.FindStringSubmatch(d.lines[j])
			if m == nil {
				continue
			}
			rewritten, ok := prependToValue(m, libPath)
			if !ok {
				return false, true
			}
			d.lines[j] = rewritten
			return true, true
		}

		// Table exists but has no LD_PRELOAD key: insert one immediately
		// after the header, before any existing keys.
		d.insert(i+1, fmt.Sprintf(`LD_PRELOAD = "%s"`, libPath))
		return true, true
	}

	return false, false
}

// prependToValue rewrites a matched assignment so libPath leads the quoted
// value. m holds the three submatches of the preload patterns: prefix up to
// and including the opening quote, the current value, and the rest of the
// line. The containment check runs against the value portion only, so
// indentation differences cannot produce false negatives.
func prependToValue(m []string, libPath string) (string, bool) {
	value := m[2]
	if strings.Contains(value, libPath) {
		return "", false
	}
	if value == "" {
		return m[1] + libPath + m[3], true
	}
	return m[1] + libPath + ":" + value + m[3], true
}
