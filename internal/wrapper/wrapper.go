// SPDX-License-Identifier: MPL-2.0

// Package wrapper re-executes the real gramine-manifest tool and injects
// the RA-TLS preload library into the manifest it generates. The wrapper is
// transparent: arguments and stdio pass straight through, the tool's exit
// code is preserved, and injection failures are warnings only.
package wrapper

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"ratlsctl/pkg/manifest"

	"github.com/charmbracelet/log"
)

const (
	// DefaultTool is the manifest generation binary looked up on PATH.
	DefaultTool = "gramine-manifest"

	// EnvTool overrides the path of the real manifest tool, for setups
	// where the wrapper shadows the original binary.
	EnvTool = "RATLS_GRAMINE_MANIFEST"
)

// Wrapper runs the manifest tool and post-processes its output.
type Wrapper struct {
	// Tool is the manifest generation binary to execute.
	Tool string

	// Engine performs the post-processing injection.
	Engine *manifest.Engine

	// Logger receives wrapper diagnostics. May be nil.
	Logger *log.Logger

	// Stdio of the child process; defaults to the wrapper's own.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New builds a Wrapper around eng, resolving the tool name from EnvTool.
func New(eng *manifest.Engine, logger *log.Logger) *Wrapper {
	tool := os.Getenv(EnvTool)
	if tool == "" {
		tool = DefaultTool
	}
	return &Wrapper{
		Tool:   tool,
		Engine: eng,
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run invokes the manifest tool with args and, if it succeeds, injects the
// preload library into the output manifest. The returned code is the
// tool's exit code; injection never affects it.
func (w *Wrapper) Run(ctx context.Context, args []string) int {
	cmd := exec.CommandContext(ctx, w.Tool, args...)
	cmd.Stdin = w.Stdin
	cmd.Stdout = w.Stdout
	cmd.Stderr = w.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		w.logger().Error("failed to run manifest tool", "tool", w.Tool, "err", err)
		return 1
	}

	out := OutputFile(args)
	if out == "" {
		w.logger().Debug("no output manifest argument found, skipping injection")
		return 0
	}

	outcome := w.Engine.InjectFile(ctx, out)
	if outcome.Modified {
		w.logger().Debug("injected preload library", "manifest", out)
	} else {
		w.logger().Debug("manifest left unchanged", "manifest", out, "reason", outcome.Skip.String())
	}
	return 0
}

// OutputFile extracts the output manifest path from gramine-manifest
// arguments: -D definitions are standalone, any other flag may consume the
// following value, and the last remaining positional argument is the
// output file. Returns "" when no positional argument survives.
func OutputFile(args []string) string {
	i := 0
	for i < len(args) {
		arg := args[i]
		if strings.HasPrefix(arg, "-D") {
			i++
			continue
		}
		if strings.HasPrefix(arg, "-") {
			i++
			if i < len(args) && !strings.HasPrefix(args[i], "-") {
				i++
			}
			continue
		}
		if i == len(args)-1 {
			return arg
		}
		i++
	}
	return ""
}

func (w *Wrapper) logger() *log.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return log.Default()
}
