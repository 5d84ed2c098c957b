package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations
var embedMigrations embed.FS

// gooseLogger routes goose progress output through zap.
type gooseLogger struct {
	*zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.Infof(strings.TrimSpace(format), v...)
}

func configureGoose(driver string, log *zap.Logger) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetTableName("schema_migrations")
	if log == nil {
		log = zap.NewNop()
	}
	goose.SetLogger(gooseLogger{log.Named("migrate").Sugar()})

	switch driver {
	case "sqlite", "sqlite3":
		return goose.SetDialect("sqlite3")
	case "postgres", "pgx":
		return goose.SetDialect("postgres")
	default:
		return fmt.Errorf("unsupported driver for goose: %s", driver)
	}
}

func migrationDir(driver string) string {
	if driver == "postgres" || driver == "pgx" {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

// Up applies every pending migration for the given driver.
func Up(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) error {
	if err := configureGoose(driver, log); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, migrationDir(driver))
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) error {
	if err := configureGoose(driver, log); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, migrationDir(driver))
}

// Status logs the applied state of every migration.
func Status(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) error {
	if err := configureGoose(driver, log); err != nil {
		return err
	}
	return goose.StatusContext(ctx, db, migrationDir(driver))
}
