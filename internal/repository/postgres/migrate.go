package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// newMigrationProvider builds a goose provider over the embedded migrations.
// A postgres advisory lock keeps concurrent starts from applying the same file twice.
func newMigrationProvider(db *DB, locking bool) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}

	var opts []goose.ProviderOption
	if locking {
		locker, err := lock.NewPostgresSessionLocker()
		if err != nil {
			return nil, fmt.Errorf("create migration locker: %w", err)
		}
		opts = append(opts, goose.WithSessionLocker(locker))
	}

	return goose.NewProvider(goose.DialectPostgres, db.DB.DB, fsys, opts...)
}

// Migrate applies every embedded migration not yet recorded by goose and
// returns how many ran.
func (db *DB) Migrate(ctx context.Context) (int, error) {
	provider, err := newMigrationProvider(db, true)
	if err != nil {
		return 0, err
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		log.Info().
			Int64("version", r.Source.Version).
			Str("file", r.Source.Path).
			Dur("took", r.Duration).
			Msg("postgres: migration applied")
	}
	return len(results), nil
}
