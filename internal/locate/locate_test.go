// SPDX-License-Identifier: MPL-2.0

package locate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeLibrary(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, LibraryName)
	if err := os.WriteFile(path, []byte("\x7fELF"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func TestFind_Override(t *testing.T) {
	t.Parallel()

	lib := writeLibrary(t, t.TempDir())
	loc := &Locator{OverridePath: lib}

	got, ok := loc.Find(context.Background())
	if !ok {
		t.Fatal("Find() = false, want true")
	}
	if got != lib {
		t.Errorf("Find() = %q, want %q", got, lib)
	}
}

func TestFind_OverrideMissingFallsThrough(t *testing.T) {
	t.Parallel()

	lib := writeLibrary(t, t.TempDir())
	loc := &Locator{
		OverridePath: filepath.Join(t.TempDir(), "nope.so"),
		SearchPaths:  []string{lib},
	}

	got, ok := loc.Find(context.Background())
	if !ok {
		t.Fatal("Find() = false, want true")
	}
	if got != lib {
		t.Errorf("Find() = %q, want %q", got, lib)
	}
}

func TestFind_SearchPathOrder(t *testing.T) {
	t.Parallel()

	first := writeLibrary(t, t.TempDir())
	second := writeLibrary(t, t.TempDir())
	loc := &Locator{SearchPaths: []string{
		filepath.Join(t.TempDir(), "absent.so"),
		first,
		second,
	}}

	got, ok := loc.Find(context.Background())
	if !ok {
		t.Fatal("Find() = false, want true")
	}
	if got != first {
		t.Errorf("Find() = %q, want first match %q", got, first)
	}
}

func TestFind_ResolvesSymlinks(t *testing.T) {
	t.Parallel()

	target := writeLibrary(t, t.TempDir())
	link := filepath.Join(t.TempDir(), LibraryName)
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	loc := &Locator{OverridePath: link}
	got, ok := loc.Find(context.Background())
	if !ok {
		t.Fatal("Find() = false, want true")
	}
	if got != target {
		t.Errorf("Find() = %q, want symlink target %q", got, target)
	}
}

func TestFind_NothingFound(t *testing.T) {
	t.Parallel()

	loc := &Locator{
		SearchPaths: []string{filepath.Join(t.TempDir(), "absent.so")},
		Ldconfig:    "",
	}
	if got, ok := loc.Find(context.Background()); ok {
		t.Errorf("Find() = %q, true; want not found", got)
	}
}

func TestFind_LdconfigMissingBinary(t *testing.T) {
	t.Parallel()

	loc := &Locator{
		Ldconfig: filepath.Join(t.TempDir(), "no-such-ldconfig"),
		Timeout:  DefaultTimeout,
	}
	if got, ok := loc.Find(context.Background()); ok {
		t.Errorf("Find() = %q, true; want not found", got)
	}
}

func TestParseLinkerCache(t *testing.T) {
	t.Parallel()

	lib := writeLibrary(t, t.TempDir())
	loc := &Locator{}

	tests := []struct {
		name   string
		out    string
		want   string
		wantOK bool
	}{
		{
			name: "library line with marker",
			out: "\t" + "libc.so.6 (libc6,x86-64) => /lib/x86_64-linux-gnu/libc.so.6\n" +
				"\t" + LibraryName + " (libc6,x86-64) => " + lib + "\n",
			want:   lib,
			wantOK: true,
		},
		{
			name:   "marker points at a missing file",
			out:    "\t" + LibraryName + " (libc6,x86-64) => /nonexistent/" + LibraryName + "\n",
			wantOK: false,
		},
		{
			name:   "library named but no marker",
			out:    "\t" + LibraryName + " (libc6,x86-64)\n",
			wantOK: false,
		},
		{
			name:   "unrelated cache only",
			out:    "\tlibc.so.6 (libc6,x86-64) => /lib/x86_64-linux-gnu/libc.so.6\n",
			wantOK: false,
		},
		{
			name:   "empty output",
			out:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := loc.parseLinkerCache(tt.out)
			if ok != tt.wantOK {
				t.Fatalf("parseLinkerCache() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("parseLinkerCache() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	loc := New("", 0, nil)
	if loc.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", loc.Timeout, DefaultTimeout)
	}
	if loc.Ldconfig != "ldconfig" {
		t.Errorf("Ldconfig = %q, want %q", loc.Ldconfig, "ldconfig")
	}
	if len(loc.SearchPaths) != len(DefaultSearchPaths) {
		t.Errorf("SearchPaths = %v", loc.SearchPaths)
	}
}
