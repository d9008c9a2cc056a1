// SPDX-License-Identifier: MPL-2.0

package main

import cmd "ratlsctl/cmd/ratlsctl"

func main() {
	cmd.Execute()
}
