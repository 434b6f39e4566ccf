// Command emucopy drives container.CreateCopy between two EMU files.
package main

import (
	"fmt"
	"os"

	"github.com/emuformat/emu-go/internal/cli"
	"github.com/emuformat/emu-go/pkg/memdiag"
)

func main() {
	memdiag.StartGlobal()
	defer memdiag.StopGlobal()

	if err := cli.RunCopy(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
