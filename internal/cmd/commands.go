package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/driftline/driftline/internal/cmd/base"
	"github.com/driftline/driftline/internal/cmd/commands/migrate"
	"github.com/driftline/driftline/internal/cmd/commands/operator"
	"github.com/driftline/driftline/internal/cmd/commands/version"
)

// Commands is the mapping of all available CLI commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := &base.Command{
		Log: log,
		UI:  ui,
	}

	Commands = map[string]cli.CommandFactory{
		"migrate": func() (cli.Command, error) {
			return &migrate.Command{Command: b}, nil
		},
		"operator": func() (cli.Command, error) {
			return &operator.Command{Command: b}, nil
		},
		"operator propagate-entity": func() (cli.Command, error) {
			return &operator.PropagateEntityCommand{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
