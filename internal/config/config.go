// Package config loads and validates the HCL configuration file.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/driftline/driftline/pkg/models"
)

// Config is the top-level configuration.
type Config struct {
	Database   *Database   `hcl:"database,block"`
	Pagination *Pagination `hcl:"pagination,block"`
	Notifier   *Notifier   `hcl:"notifier,block"`
}

// Database configures the PostgreSQL connection.
type Database struct {
	Host     string `hcl:"host"`
	Port     int    `hcl:"port"`
	User     string `hcl:"user"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname"`
	SSLMode  string `hcl:"sslmode,optional"`
}

// Pagination configures reverse-lookup page sizing.
type Pagination struct {
	PerPage    int `hcl:"per_page,optional"`
	MaxPerPage int `hcl:"max_per_page,optional"`
}

// MentionQueryParams seeds a reverse mention lookup with the configured page
// sizes. Zero values fall back to the package defaults.
func (p *Pagination) MentionQueryParams() models.PublicMentionsParams {
	return models.PublicMentionsParams{
		PerPage:    p.PerPage,
		MaxPerPage: p.MaxPerPage,
	}
}

// Notifier configures the outbound HTTP notifier.
type Notifier struct {
	Endpoint string `hcl:"endpoint"`

	// MaxElapsedSeconds bounds the retry window per delivery.
	MaxElapsedSeconds int `hcl:"max_elapsed_seconds,optional"`
}

// MaxElapsed returns the retry window as a duration.
func (n *Notifier) MaxElapsed() time.Duration {
	return time.Duration(n.MaxElapsedSeconds) * time.Second
}

// NewConfig parses the HCL file at path into a validated Config.
func NewConfig(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or inconsistent values.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Database == nil {
		result = multierror.Append(result, fmt.Errorf("database block is required"))
	} else {
		if err := validation.ValidateStruct(c.Database,
			validation.Field(&c.Database.Host, validation.Required),
			validation.Field(&c.Database.Port, validation.Required),
			validation.Field(&c.Database.User, validation.Required),
			validation.Field(&c.Database.DBName, validation.Required),
		); err != nil {
			result = multierror.Append(result, fmt.Errorf("database: %w", err))
		}
	}

	if c.Pagination != nil {
		if c.Pagination.PerPage < 0 || c.Pagination.MaxPerPage < 0 {
			result = multierror.Append(result,
				fmt.Errorf("pagination: page sizes cannot be negative"))
		}
		if c.Pagination.MaxPerPage != 0 && c.Pagination.PerPage > c.Pagination.MaxPerPage {
			result = multierror.Append(result,
				fmt.Errorf("pagination: per_page exceeds max_per_page"))
		}
	}

	if c.Notifier != nil {
		if err := validation.ValidateStruct(c.Notifier,
			validation.Field(&c.Notifier.Endpoint, validation.Required),
			validation.Field(&c.Notifier.MaxElapsedSeconds, validation.Min(0)),
		); err != nil {
			result = multierror.Append(result, fmt.Errorf("notifier: %w", err))
		}
	}

	return result.ErrorOrNil()
}
