// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"os"

	"ratlsctl/internal/issue"
	"ratlsctl/internal/locate"

	"github.com/spf13/cobra"
)

// locateCmd resolves and prints the preload library path.
var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Print the resolved path of the RA-TLS preload library",
	Long: `Print the resolved path of the RA-TLS preload library.

Resolution honors the RATLS_PRELOAD_SO / RATLS_PRELOAD_PATH override, then
the conventional installation paths, then the dynamic-linker cache. The
printed path is symlink-resolved, exactly as the injector would embed it.`,
	Args: cobra.NoArgs,
	RunE: runLocate,
}

func runLocate(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	settings := loadSettings(logger)

	loc := locate.New(settings.PreloadPathOverride, settings.LdconfigTimeout, logger)
	path, ok := loc.Find(cmd.Context())
	if !ok {
		if msg, err := issue.Get(issue.LibraryNotFoundId).Render("dark"); err == nil {
			fmt.Fprint(os.Stderr, msg)
		} else {
			fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+locate.LibraryName+" not found")
		}
		return &ExitError{Code: 1}
	}

	fmt.Println(path)
	return nil
}
