// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"ratlsctl/internal/locate"
	"ratlsctl/pkg/manifest"

	"github.com/spf13/cobra"
)

// injectCmd post-processes a generated manifest file in place.
var injectCmd = &cobra.Command{
	Use:   "inject <manifest>",
	Short: "Inject the RA-TLS preload library into a Gramine manifest",
	Long: `Inject the RA-TLS preload library into a Gramine manifest.

The manifest is rewritten in place so that libratls-quote-verify.so is the
first LD_PRELOAD entry and appears in the sgx.trusted_files allowlist.
Manifests that do not enable DCAP remote attestation are left untouched,
as are manifests that already reference the library.

Every skip is a success: a missing library, a non-attested manifest, or an
unreadable file never fails the surrounding build step.`,
	Args: cobra.ExactArgs(1),
	RunE: runInject,
}

func runInject(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	settings := loadSettings(logger)

	eng := manifest.NewEngine(settings, logger)
	outcome := eng.InjectFile(cmd.Context(), args[0])

	if outcome.Modified {
		fmt.Printf("%s Injected %s into %s\n", SuccessStyle.Render("✓"), locate.LibraryName, args[0])
		return nil
	}

	fmt.Println(SubtitleStyle.Render("No changes: " + outcome.Skip.String()))
	return nil
}
