package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the Postgres schema, one file per step.
var Migrations = migrate.NewMigrations()
