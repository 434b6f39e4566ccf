// Command emuinfo dumps the header, footer, tile-index, and RAT summary
// of an EMU container file.
package main

import (
	"fmt"
	"os"

	"github.com/emuformat/emu-go/internal/cli"
)

func main() {
	if err := cli.RunInfo(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
