package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the content schema; each file registers one migration
// named after its timestamp prefix.
var Migrations = migrate.NewMigrations()
