// Command tagview indexes media directories and runs the masonry layout
// engine headlessly.
package main

import (
	"os"

	"github.com/tagview/tagview/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
