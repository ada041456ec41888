package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/sakif/tasklist/migrations"
)

// Migrate runs all pending migrations from migrations/postgres.
// goose needs a database/sql handle, so it gets its own short-lived one
// through the pgx stdlib driver.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("postgres: opening migration connection: %w", err)
	}
	defer db.Close()

	fsys, err := fs.Sub(migrations.FS, migrations.PostgresDir)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(database.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("postgres: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("postgres: applying migrations: %w", err)
	}
	return nil
}
