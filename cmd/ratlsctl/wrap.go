// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"ratlsctl/internal/issue"
	"ratlsctl/internal/wrapper"
	"ratlsctl/pkg/manifest"

	"github.com/spf13/cobra"
)

// wrapCmd passes its arguments through to the real gramine-manifest tool
// and post-processes the manifest it writes. Flag parsing is disabled so
// tool flags like -Dkey=value reach the child verbatim.
var wrapCmd = &cobra.Command{
	Use:   "wrap [gramine-manifest args...]",
	Short: "Run gramine-manifest and inject the preload library into its output",
	Long: `Run gramine-manifest and inject the preload library into its output.

All arguments are forwarded unchanged and the tool's exit code is
preserved. On success, the output manifest (the last positional argument)
is post-processed with the same logic as 'ratlsctl inject'. The real
binary is found on PATH as 'gramine-manifest' or via the
RATLS_GRAMINE_MANIFEST environment variable.`,
	DisableFlagParsing: true,
	RunE:               runWrap,
}

func runWrap(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	settings := loadSettings(logger)

	w := wrapper.New(manifest.NewEngine(settings, logger), logger)

	if _, err := exec.LookPath(w.Tool); err != nil {
		if msg, rerr := issue.Get(issue.ManifestToolNotFoundId).Render("dark"); rerr == nil {
			fmt.Fprint(os.Stderr, msg)
		}
		return &ExitError{Code: 1, Err: issue.WrapWithOperation(err, "find manifest tool")}
	}

	if code := w.Run(cmd.Context(), args); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}
