package version

import (
	"github.com/driftline/driftline/internal/cmd/base"
	"github.com/driftline/driftline/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version"
}

func (c *Command) Help() string {
	return `Usage: driftline version

  This command prints the version.`
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
