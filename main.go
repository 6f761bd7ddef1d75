// The main package for the golfmetrics executable.
package main

import (
	"github.com/teeradar/golfmetrics/cmd"
)

// main defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
