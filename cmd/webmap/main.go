// webmap serves directories, archives, tables and upstream servers under
// URI prefixes.
package main

import (
	"os"

	"github.com/getmockd/webmap/pkg/cli"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	return cli.Main(cli.BuildInfo{Version: Version, Commit: Commit, BuildDate: BuildDate}, os.Args[1:])
}
