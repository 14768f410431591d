package operator

import (
	"flag"
	"fmt"

	"github.com/driftline/driftline/internal/cmd/base"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/pkg/database"
	"github.com/driftline/driftline/pkg/models"
)

// PropagateEntityCommand bulk-rewrites the entity stored on an account's
// original posts and their mentions after the account's public identity
// changes.
type PropagateEntityCommand struct {
	*base.Command

	flagConfig    string
	flagAccountID uint
	flagEntity    string
	flagOldEntity string
}

func (c *PropagateEntityCommand) Synopsis() string {
	return "Rewrite an account's entity on its original posts and mentions"
}

func (c *PropagateEntityCommand) Help() string {
	return `Usage: driftline operator propagate-entity

  This command rewrites the entity value stored on an account's original
  posts, and on mentions pointing at the old entity, after the account's
  public identity changed.` +
		c.Flags().Help()
}

func (c *PropagateEntityCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(
		flag.NewFlagSet("propagate-entity", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to the config file",
	)
	f.UintVar(
		&c.flagAccountID, "account-id", 0, "(Required) Account to rewrite",
	)
	f.StringVar(
		&c.flagEntity, "entity", "", "(Required) New entity URI",
	)
	f.StringVar(
		&c.flagOldEntity, "old-entity", "",
		"Previous entity URI; mentions showing it are rewritten too.",
	)

	return f
}

func (c *PropagateEntityCommand) Run(args []string) int {
	log, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagConfig == "" {
		ui.Error("config flag is required")
		return 1
	}
	if c.flagAccountID == 0 {
		ui.Error("account-id flag is required")
		return 1
	}
	if c.flagEntity == "" {
		ui.Error("entity flag is required")
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}

	db, err := database.Connect(database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	}, log)
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}

	if err := models.PropagatePostEntity(
		db, c.flagAccountID, c.flagEntity, c.flagOldEntity,
	); err != nil {
		ui.Error(fmt.Sprintf("error propagating entity: %v", err))
		return 1
	}

	log.Info("entity propagated",
		"account_id", c.flagAccountID,
		"entity", c.flagEntity,
	)
	ui.Output("Entity propagated successfully")
	return 0
}
