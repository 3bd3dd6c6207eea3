// Command kifreasond runs the incremental first-order reasoning daemon:
// an event-bus-wired Context exposed over a file loader and a websocket
// adapter (spec §6).
package main

import (
	"os"

	"github.com/kifreason/kifreason/cmd/kifreasond/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
