// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	LibraryNotFoundId Id = iota + 1
	ManifestNotAccessibleId
	ManifestToolNotFoundId
)

type MarkdownMsg string

type Issue struct {
	id    Id          // ID used to look up the issue
	mdMsg MarkdownMsg // Markdown text that will be rendered
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Render(stylePath string) (string, error) {
	return render(string(i.mdMsg), stylePath)
}

var (
	render = glamour.Render

	libraryNotFoundIssue = &Issue{
		id: LibraryNotFoundId,
		mdMsg: `
# RA-TLS preload library not found!

We could not locate ` + "`libratls-quote-verify.so`" + ` anywhere on this host.

## Search order:
1. The ` + "`RATLS_PRELOAD_SO`" + ` / ` + "`RATLS_PRELOAD_PATH`" + ` environment variables
2. Conventional locations under /usr/local/lib and /usr/lib
3. The dynamic-linker cache (` + "`ldconfig -p`" + `)

## Things you can try:
- Install the RA-TLS quote verification library and re-run ` + "`ldconfig`" + `
- Point the engine at a custom build:
~~~
$ export RATLS_PRELOAD_SO=/opt/ratls/libratls-quote-verify.so
~~~
- If injection is not wanted on this host, disable it explicitly:
~~~
$ export DISABLE_RATLS_PRELOAD=1
~~~`,
	}

	manifestNotAccessibleIssue = &Issue{
		id: ManifestNotAccessibleId,
		mdMsg: `
# Manifest not accessible!

The manifest file could not be read or written.

## Things you can try:
- Check that the path passed to ` + "`ratlsctl inject`" + ` is correct
- Verify the manifest generation step ran before injection
- Check file permissions on the manifest and its directory

Injection is a post-processing enhancement: this never fails your build,
the manifest is simply left as generated.`,
	}

	manifestToolNotFoundIssue = &Issue{
		id: ManifestToolNotFoundId,
		mdMsg: `
# gramine-manifest not found!

` + "`ratlsctl wrap`" + ` re-executes the real manifest generation tool, but it is
not on PATH.

## Things you can try:
- Install Gramine so ` + "`gramine-manifest`" + ` is available
- Point the wrapper at the real binary:
~~~
$ export RATLS_GRAMINE_MANIFEST=/usr/local/bin/gramine-manifest.real
~~~`,
	}

	issues = map[Id]*Issue{
		libraryNotFoundIssue.Id():       libraryNotFoundIssue,
		manifestNotAccessibleIssue.Id(): manifestNotAccessibleIssue,
		manifestToolNotFoundIssue.Id():  manifestToolNotFoundIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}

// Sorted returns all issue ids in ascending order.
func Sorted() []Id {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	return ids
}
