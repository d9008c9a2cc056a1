// SPDX-License-Identifier: MPL-2.0

// Package locate resolves the filesystem path of the RA-TLS quote
// verification library on the host. Resolution order, first match wins:
// an explicit override path, the conventional installation locations, and
// finally a query against the dynamic-linker cache (ldconfig -p). Every
// failure along the way degrades to "not found"; lookup never errors.
package locate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// LibraryName is the preload library this package resolves.
const LibraryName = "libratls-quote-verify.so"

// DefaultTimeout bounds the ldconfig subprocess. The linker-cache query is
// the only blocking operation in the whole engine.
const DefaultTimeout = 5 * time.Second

// DefaultSearchPaths lists the conventional installation locations probed
// before falling back to the dynamic-linker cache.
var DefaultSearchPaths = []string{
	"/usr/local/lib/" + LibraryName,
	"/usr/lib/" + LibraryName,
	"/usr/local/lib/x86_64-linux-gnu/" + LibraryName,
	"/usr/lib/x86_64-linux-gnu/" + LibraryName,
}

// ldconfig -p prints lines like
// "libratls-quote-verify.so (libc6,x86-64) => /usr/lib/libratls-quote-verify.so";
// the path follows the resolution marker.
var resolutionMarkerPattern = regexp.MustCompile(`=>\s+(.+)$`)

// Locator finds the preload library. The zero value is not usable; call
// New, or fill the fields explicitly in tests.
type Locator struct {
	// OverridePath short-circuits all lookup when it names an existing
	// regular file. Non-existing overrides fall through to the search list.
	OverridePath string

	// SearchPaths are probed in order after the override.
	SearchPaths []string

	// Ldconfig is the dynamic-linker cache query binary.
	Ldconfig string

	// Timeout bounds the ldconfig subprocess.
	Timeout time.Duration

	// Logger receives debug detail about the lookup. May be nil.
	Logger *log.Logger
}

// New returns a Locator with the conventional search list and ldconfig
// fallback. overridePath may be empty.
func New(overridePath string, timeout time.Duration, logger *log.Logger) *Locator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Locator{
		OverridePath: overridePath,
		SearchPaths:  DefaultSearchPaths,
		Ldconfig:     "ldconfig",
		Timeout:      timeout,
		Logger:       logger,
	}
}

// Find resolves the library to an absolute, symlink-resolved path. The
// second return value is false when the library cannot be found anywhere.
func (l *Locator) Find(ctx context.Context) (string, bool) {
	if l.OverridePath != "" {
		if isFile(l.OverridePath) {
			return resolveSymlink(l.OverridePath), true
		}
		l.logf("override path does not reference an existing file", "path", l.OverridePath)
	}

	for _, candidate := range l.SearchPaths {
		if isFile(candidate) {
			return resolveSymlink(candidate), true
		}
	}

	return l.fromLinkerCache(ctx)
}

// fromLinkerCache queries ldconfig -p for the library. Any failure of the
// subprocess (missing binary, non-zero exit, timeout) is treated as "not
// found", never propagated.
func (l *Locator) fromLinkerCache(ctx context.Context) (string, bool) {
	if l.Ldconfig == "" {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, l.Ldconfig, "-p").Output()
	if err != nil {
		l.logf("linker cache query failed", "err", err)
		return "", false
	}

	return l.parseLinkerCache(string(out))
}

// parseLinkerCache scans ldconfig -p output for a line naming the library
// and extracts the path following the resolution marker.
func (l *Locator) parseLinkerCache(out string) (string, bool) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, LibraryName) {
			continue
		}
		m := resolutionMarkerPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		path := strings.TrimSpace(m[1])
		if isFile(path) {
			return resolveSymlink(path), true
		}
	}
	return "", false
}

func (l *Locator) logf(msg string, keyvals ...any) {
	if l.Logger != nil {
		l.Logger.Debug(msg, keyvals...)
	}
}

// resolveSymlink resolves path to its real target and re-validates it as a
// regular file. If resolution fails, the original candidate is returned
// rather than failing the lookup.
func resolveSymlink(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil || !isFile(resolved) {
		return path
	}
	return resolved
}

// isFile checks that path exists and is a regular file.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
