// Package migrations embeds the goose SQL migrations for the accounts,
// refresh_tokens and password_reset_tokens tables.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var files embed.FS

const dir = "sql"

// Up applies every pending migration on db.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(files)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// UpURL opens url with the pgx stdlib driver, migrates and closes it.
func UpURL(ctx context.Context, url string) error {
	db, err := goose.OpenDBWithDriver("pgx", url)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	return Up(ctx, db)
}

// Files exposes the embedded migration sources.
func Files() embed.FS { return files }
