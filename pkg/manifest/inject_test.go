// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ratlsctl/internal/config"
	"ratlsctl/internal/locate"
)

// fakeLibrary creates a dummy shared object in a temp dir and returns the
// symlink-resolved path the locator would hand to the engine.
func fakeLibrary(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), locate.LibraryName)
	if err := os.WriteFile(path, []byte("\x7fELF"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func newTestEngine(t *testing.T, settings config.Settings, libPath string) *Engine {
	t.Helper()

	eng := NewEngine(settings, nil)
	eng.Locator = &locate.Locator{OverridePath: libPath}
	return eng
}

func TestEngineRun_DottedManifest(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	eng := newTestEngine(t, config.Defaults(), lib)

	text := strings.Join([]string{
		`libos.entrypoint = "/app"`,
		`loader.env.LD_PRELOAD = "/usr/lib/existing.so"`,
		`sgx.remote_attestation = "dcap"`,
		`sgx.trusted_files = [`,
		`  "file:/app",`,
		`]`,
	}, "\n")

	outcome := eng.Run(context.Background(), text)
	if !outcome.Modified {
		t.Fatalf("Run() not modified, skip = %v", outcome.Skip)
	}
	if !strings.Contains(outcome.Text, `loader.env.LD_PRELOAD = "`+lib+`:/usr/lib/existing.so"`) {
		t.Errorf("preload not prepended:\n%s", outcome.Text)
	}
	if !strings.Contains(outcome.Text, `  "file:`+lib+`",`) {
		t.Errorf("trusted file not appended:\n%s", outcome.Text)
	}
	if !strings.Contains(outcome.Text, `"file:/app",`) {
		t.Errorf("existing trusted entry lost:\n%s", outcome.Text)
	}
}

func TestEngineRun_TableManifest(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	eng := newTestEngine(t, config.Defaults(), lib)

	text := strings.Join([]string{
		`[loader]`,
		`log_level = "error"`,
		``,
		`[loader.env]`,
		`LD_PRELOAD = ""`,
		``,
		`[sgx]`,
		`remote_attestation = "dcap"`,
		`trusted_files = [`,
		`  "file:/app",`,
		`]`,
	}, "\n")

	outcome := eng.Run(context.Background(), text)
	if !outcome.Modified {
		t.Fatalf("Run() not modified, skip = %v", outcome.Skip)
	}
	if !strings.Contains(outcome.Text, `LD_PRELOAD = "`+lib+`"`) {
		t.Errorf("preload not set:\n%s", outcome.Text)
	}
	if n := strings.Count(outcome.Text, `"file:`+lib+`"`); n != 1 {
		t.Errorf("trusted entry count = %d, want 1:\n%s", n, outcome.Text)
	}
}

func TestEngineRun_SynthesizesMissingSlots(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	eng := newTestEngine(t, config.Defaults(), lib)

	text := "libos.entrypoint = \"/app\"\nsgx.remote_attestation = \"dcap\""

	outcome := eng.Run(context.Background(), text)
	if !outcome.Modified {
		t.Fatalf("Run() not modified, skip = %v", outcome.Skip)
	}
	if !strings.Contains(outcome.Text, `loader.env.LD_PRELOAD = "`+lib+`"`) {
		t.Errorf("preload key not synthesized:\n%s", outcome.Text)
	}
	if !strings.Contains(outcome.Text, "sgx.trusted_files = [") {
		t.Errorf("trusted-files array not synthesized:\n%s", outcome.Text)
	}
}

func TestEngineRun_Skips(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	attested := `sgx.remote_attestation = "dcap"`

	tests := []struct {
		name string
		eng  func(t *testing.T) *Engine
		text string
		want SkipReason
	}{
		{
			name: "disabled by settings",
			eng: func(t *testing.T) *Engine {
				return newTestEngine(t, config.Settings{DisablePreload: true}, lib)
			},
			text: attested,
			want: SkipDisabled,
		},
		{
			name: "manifest without attestation",
			eng: func(t *testing.T) *Engine {
				return newTestEngine(t, config.Defaults(), lib)
			},
			text: `libos.entrypoint = "/app"`,
			want: SkipNotAttested,
		},
		{
			name: "library nowhere to be found",
			eng: func(t *testing.T) *Engine {
				eng := NewEngine(config.Defaults(), nil)
				eng.Locator = &locate.Locator{SearchPaths: nil, Ldconfig: ""}
				return eng
			},
			text: attested,
			want: SkipNoLibrary,
		},
		{
			name: "library already referenced",
			eng: func(t *testing.T) *Engine {
				return newTestEngine(t, config.Defaults(), lib)
			},
			text: attested + "\nsgx.trusted_files = [\"file:" + lib + "\"]",
			want: SkipAlreadyPresent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			outcome := tt.eng(t).Run(context.Background(), tt.text)
			if outcome.Modified {
				t.Error("Run() modified = true, want false")
			}
			if outcome.Skip != tt.want {
				t.Errorf("Run() skip = %v, want %v", outcome.Skip, tt.want)
			}
			if outcome.Text != tt.text {
				t.Errorf("skipped run changed the text:\n%s", outcome.Text)
			}
		})
	}
}

func TestEngineRun_Idempotent(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	eng := newTestEngine(t, config.Defaults(), lib)

	first := eng.Run(context.Background(), `sgx.remote_attestation = "dcap"`)
	if !first.Modified {
		t.Fatalf("first run not modified, skip = %v", first.Skip)
	}

	second := eng.Run(context.Background(), first.Text)
	if second.Modified {
		t.Error("second run modified an already-augmented manifest")
	}
	if second.Skip != SkipAlreadyPresent {
		t.Errorf("second run skip = %v, want %v", second.Skip, SkipAlreadyPresent)
	}
	if second.Text != first.Text {
		t.Error("second run changed the text")
	}
}

func TestEngineRun_PreservesCRLF(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	eng := newTestEngine(t, config.Defaults(), lib)

	text := "libos.entrypoint = \"/app\"\r\nsgx.remote_attestation = \"dcap\"\r\n"

	outcome := eng.Run(context.Background(), text)
	if !outcome.Modified {
		t.Fatalf("Run() not modified, skip = %v", outcome.Skip)
	}
	if strings.Contains(strings.ReplaceAll(outcome.Text, "\r\n", ""), "\n") {
		t.Errorf("mixed line endings in output:\n%q", outcome.Text)
	}
	if !strings.HasSuffix(outcome.Text, "\r\n") {
		t.Errorf("trailing newline lost:\n%q", outcome.Text)
	}
}

func TestInjectFile(t *testing.T) {
	t.Parallel()

	lib := fakeLibrary(t)
	eng := newTestEngine(t, config.Defaults(), lib)

	path := filepath.Join(t.TempDir(), "app.manifest")
	text := "sgx.remote_attestation = \"dcap\"\n"
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		t.Fatal(err)
	}

	outcome := eng.InjectFile(context.Background(), path)
	if !outcome.Modified {
		t.Fatalf("InjectFile() not modified, skip = %v", outcome.Skip)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != outcome.Text {
		t.Error("file content differs from reported outcome text")
	}
	if !strings.Contains(string(data), "file:"+lib) {
		t.Errorf("trusted entry missing from rewritten file:\n%s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file permissions = %o, want 600", perm)
	}
}

func TestInjectFile_MissingManifest(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, config.Defaults(), fakeLibrary(t))

	outcome := eng.InjectFile(context.Background(), filepath.Join(t.TempDir(), "absent.manifest"))
	if outcome.Modified {
		t.Error("InjectFile() modified = true for a missing file")
	}
	if outcome.Skip != SkipUnreadable {
		t.Errorf("InjectFile() skip = %v, want %v", outcome.Skip, SkipUnreadable)
	}
}

func TestSkipReasonString(t *testing.T) {
	t.Parallel()

	for _, r := range []SkipReason{SkipNone, SkipDisabled, SkipNotAttested, SkipNoLibrary, SkipAlreadyPresent, SkipUnreadable} {
		if r.String() == "" || r.String() == "unknown" {
			t.Errorf("SkipReason(%d).String() = %q", r, r.String())
		}
	}
	if got := SkipReason(99).String(); got != "unknown" {
		t.Errorf("SkipReason(99).String() = %q, want %q", got, "unknown")
	}
}
