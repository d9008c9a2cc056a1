// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"os"

	"ratlsctl/internal/config"
	"ratlsctl/internal/locate"

	"github.com/charmbracelet/log"
)

type (
	// SkipReason explains why a pipeline run left the manifest untouched.
	SkipReason int

	// Outcome is the result of one augmentation run. When Modified is
	// false, Text is byte-identical to the input.
	Outcome struct {
		Text     string
		Modified bool
		Skip     SkipReason
	}

	// Engine sequences the augmentation pipeline over one manifest at a
	// time. It keeps no cross-call state; the same Engine may be reused
	// for any number of manifests.
	Engine struct {
		Settings config.Settings
		Locator  *locate.Locator
		Logger   *log.Logger
	}
)

const (
	// SkipNone means the manifest was augmented.
	SkipNone SkipReason = iota
	// SkipDisabled means the disable flag is set.
	SkipDisabled
	// SkipNotAttested means the manifest does not configure DCAP.
	SkipNotAttested
	// SkipNoLibrary means the preload library could not be found.
	SkipNoLibrary
	// SkipAlreadyPresent means the resolved path already occurs in the
	// manifest.
	SkipAlreadyPresent
	// SkipUnreadable means the manifest file could not be read or written.
	// Like every other skip, this is a non-error: augmentation is an
	// enhancement, not a correctness gate for the surrounding build.
	SkipUnreadable
)

// String describes the skip reason for log and CLI output.
func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "injected"
	case SkipDisabled:
		return "preload injection disabled via " + config.EnvDisable
	case SkipNotAttested:
		return "manifest does not enable DCAP remote attestation"
	case SkipNoLibrary:
		return locate.LibraryName + " not found"
	case SkipAlreadyPresent:
		return "library already present in manifest"
	case SkipUnreadable:
		return "manifest not accessible"
	}
	return "unknown"
}

// NewEngine builds an Engine from settings, wiring the default locator.
func NewEngine(settings config.Settings, logger *log.Logger) *Engine {
	return &Engine{
		Settings: settings,
		Locator:  locate.New(settings.PreloadPathOverride, settings.LdconfigTimeout, logger),
		Logger:   logger,
	}
}

// run drives the shared pipeline over any Document representation. It
// returns SkipNone only when both injections ran.
func (e *Engine) run(ctx context.Context, doc Document) SkipReason {
	if e.Settings.DisablePreload {
		return SkipDisabled
	}
	if !doc.Attested() {
		return SkipNotAttested
	}

	libPath, ok := e.Locator.Find(ctx)
	if !ok {
		e.logger().Warn(locate.LibraryName + " not found, skipping LD_PRELOAD injection")
		return SkipNoLibrary
	}

	if doc.Contains(libPath) {
		return SkipAlreadyPresent
	}

	// Environment before trusted-files: the trusted-files synthesis
	// fallback anchors on the attestation table, which the environment
	// injector never touches.
	doc.PrependPreload(libPath)
	doc.EnsureTrustedFile(libPath)
	return SkipNone
}

// Run augments manifest text in memory. Skips return the input unchanged.
func (e *Engine) Run(ctx context.Context, text string) Outcome {
	doc := NewTextDocument(text)
	skip := e.run(ctx, doc)
	if skip != SkipNone {
		return Outcome{Text: text, Skip: skip}
	}
	return Outcome{Text: doc.String(), Modified: true}
}

// RunMap augments a structured manifest mapping in place. The mapping uses
// the nesting produced by TOML unmarshalling: loader.env.LD_PRELOAD and
// sgx.trusted_files.
func (e *Engine) RunMap(ctx context.Context, root map[string]any) SkipReason {
	return e.run(ctx, NewMapDocument(root))
}

// InjectFile augments a manifest file in place, using the same line-ending
// convention as the input. I/O failures are logged and absorbed; a missing
// or unwritable manifest never blocks an outer build pipeline.
func (e *Engine) InjectFile(ctx context.Context, path string) Outcome {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		e.logger().Debug("manifest not present, nothing to inject", "path", path)
		return Outcome{Skip: SkipUnreadable}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		e.logger().Error("failed to read manifest", "path", path, "err", err)
		return Outcome{Skip: SkipUnreadable}
	}

	outcome := e.Run(ctx, string(data))
	if !outcome.Modified {
		return outcome
	}

	if err := os.WriteFile(path, []byte(outcome.Text), info.Mode().Perm()); err != nil {
		e.logger().Error("failed to write manifest", "path", path, "err", err)
		return Outcome{Text: string(data), Skip: SkipUnreadable}
	}

	return outcome
}

func (e *Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}
