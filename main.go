// The main package for the docbridge executable.
package main

import (
	"github.com/JakeFAU/docbridge/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
