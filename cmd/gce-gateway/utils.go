// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/olekukonko/tablewriter"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v2"

	"github.com/stackbridge/gce-gateway/internal/pkg/migrations"
	osclients "github.com/stackbridge/gce-gateway/pkg/clients/openstack"
	"github.com/stackbridge/gce-gateway/pkg/core/config"
	slogutils "github.com/stackbridge/gce-gateway/pkg/utils/slog"
)

// na is the placeholder for values which are not available.
const na = "N/A"

// configKey is the key under which the parsed configuration is stored in the
// context of the CLI app.
type configKey struct{}

// errNoDatabaseDSN is returned when the configuration does not provide a
// database DSN.
var errNoDatabaseDSN = errors.New("no database dsn specified")

// errNoRedisEndpoint is returned when the configuration does not provide a
// Redis endpoint.
var errNoRedisEndpoint = errors.New("no redis endpoint specified")

// errNoAuthEndpoint is returned when the configuration does not provide an
// identity service endpoint.
var errNoAuthEndpoint = errors.New("no keystone auth endpoint specified")

// getConfig returns the configuration from the context of the CLI app.
func getConfig(ctx *cli.Context) *config.Config {
	return ctx.Context.Value(configKey{}).(*config.Config)
}

// newLogger creates a new [slog.Logger] from the given config.
func newLogger(conf *config.Config) (*slog.Logger, error) {
	return slogutils.NewFromConfig(os.Stdout, conf.Logging)
}

// newDB returns a Bun database from the given config.
func newDB(conf *config.Config) *bun.DB {
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(conf.Database.DSN)))
	db := bun.NewDB(pgdb, pgdialect.New())
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(conf.Debug)))

	return db
}

// newMigrator returns a new [migrate.Migrator] from the given config. By
// default the bundled migrations are used, unless an alternate migrations
// directory has been configured.
func newMigrator(conf *config.Config, db *bun.DB) (*migrate.Migrator, error) {
	m := migrations.Migrations
	if dir := conf.Database.MigrationDirectory; dir != "" {
		m = migrate.NewMigrations(migrate.WithMigrationsDirectory(dir))
		if err := m.Discover(os.DirFS(dir)); err != nil {
			return nil, err
		}
	}

	return migrate.NewMigrator(db, m), nil
}

// newRedisClientOpt returns the Redis connection options from the given
// config.
func newRedisClientOpt(conf *config.Config) asynq.RedisClientOpt {
	// TODO: Handle authentication, TLS, etc.
	return asynq.RedisClientOpt{
		Addr: conf.Redis.Endpoint,
	}
}

// newAsynqClient creates a new [asynq.Client] from the given config.
func newAsynqClient(conf *config.Config) *asynq.Client {
	return asynq.NewClient(newRedisClientOpt(conf))
}

// configureFactory installs the backend client factory for the configured
// identity endpoint and region.
func configureFactory(conf *config.Config) {
	withNetwork := conf.Gateway.NetworkAPI != config.NetworkAPINova
	osclients.SetFactory(osclients.NewFactory(
		conf.Keystone.AuthEndpoint,
		conf.Gateway.Region,
		withNetwork,
	))
}

// newTableWriter creates a new table with the given headers, which renders to
// the given writer.
func newTableWriter(w io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.Header(headers)

	return table
}

// validateDBConfig validates the database configuration settings.
func validateDBConfig(conf *config.Config) error {
	if conf.Database.DSN == "" {
		return errNoDatabaseDSN
	}

	return nil
}

// validateRedisConfig validates the Redis configuration settings.
func validateRedisConfig(conf *config.Config) error {
	if conf.Redis.Endpoint == "" {
		return errNoRedisEndpoint
	}

	return nil
}

// validateKeystoneConfig validates the identity service configuration
// settings.
func validateKeystoneConfig(conf *config.Config) error {
	if conf.Keystone.AuthEndpoint == "" {
		return errNoAuthEndpoint
	}

	return nil
}
