// Command example is a control test binary registering the example suites.
package main

import (
	"github.com/abdul-hamid-achik/control/apps/cli/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime, basics, lifecycle, failures)
}
