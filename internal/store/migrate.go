package store

import (
	"embed"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrations is the schema migration source for PostgresStore.
var Migrations = &migrate.EmbedFileSystemMigrationSource{
	FileSystem: migrationFS,
	Root:       "migrations",
}

// Migrate applies pending schema migrations through a database/sql
// handle borrowed from the pool.
func Migrate(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	n, err := migrate.Exec(db, "postgres", Migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	slog.Info("schema migrations applied", "count", n)
	return nil
}
