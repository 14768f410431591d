package migrate

import (
	"database/sql"
	"flag"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/driftline/driftline/internal/cmd/base"
	"github.com/driftline/driftline/internal/config"
	"github.com/driftline/driftline/internal/migrate"
	"github.com/driftline/driftline/pkg/database"
	"github.com/driftline/driftline/pkg/models"
)

// Command applies the database schema. PostgreSQL uses the embedded SQL
// migrations; the SQLite development path creates the schema through GORM
// AutoMigrate.
type Command struct {
	*base.Command

	flagConfig string
	flagSQLite string
}

func (c *Command) Synopsis() string {
	return "Apply database schema migrations"
}

func (c *Command) Help() string {
	return `Usage: driftline migrate

  This command applies all pending database schema migrations. Point it at a
  config file for PostgreSQL, or at a SQLite file for local development.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("migrate", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the config file (PostgreSQL)",
	)
	f.StringVar(
		&c.flagSQLite, "sqlite", "", "Path to a SQLite database file",
	)

	return f
}

func (c *Command) Run(args []string) int {
	log, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	switch {
	case c.flagSQLite != "":
		db, err := database.ConnectSQLite(c.flagSQLite, log)
		if err != nil {
			ui.Error(fmt.Sprintf("error opening sqlite database: %v", err))
			return 1
		}
		if err := db.AutoMigrate(models.ModelsToAutoMigrate()...); err != nil {
			ui.Error(fmt.Sprintf("error migrating sqlite database: %v", err))
			return 1
		}

	case c.flagConfig != "":
		cfg, err := config.NewConfig(c.flagConfig)
		if err != nil {
			ui.Error(fmt.Sprintf("error parsing config file: %v", err))
			return 1
		}

		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.DBName,
			cfg.Database.SSLMode,
		)
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			ui.Error(fmt.Sprintf("error connecting to database: %v", err))
			return 1
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			ui.Error(fmt.Sprintf("error pinging database: %v", err))
			return 1
		}

		if err := migrate.RunMigrations(db); err != nil {
			ui.Error(fmt.Sprintf("error running migrations: %v", err))
			return 1
		}

	default:
		ui.Error("either the config or sqlite flag is required")
		return 1
	}

	log.Info("migrations complete")
	ui.Output("Migrations applied successfully")
	return 0
}
