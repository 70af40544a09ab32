// The main package for the creatorscout executable.
package main

import (
	"github.com/creatorscout/creatorscout/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
