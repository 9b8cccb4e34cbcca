// Package storage opens the durable client-side store that keeps the
// session snapshot between runs.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/invoicedesk/internal/client/migrations"
	"github.com/dmitrijs2005/invoicedesk/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/invoicedesk/internal/filex"
)

const (
	KindSQLite  = "sqlite"
	KindKeyring = "keyring"
)

// Options selects and parameterizes a store backend.
type Options struct {
	Kind           string
	DBPath         string
	KeyringService string
	Namespace      string
}

// Store is a metadata repository plus whatever must be closed with it.
type Store struct {
	metadata.Repository
	closer io.Closer
}

func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// OpenSQLite opens (creating if needed) the SQLite database at dsn and
// migrates it. The parent directory of a plain file path is created too.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if filex.IsFilePath(dsn) {
		if _, err := filex.EnsureParentDir(dsn); err != nil {
			return nil, fmt.Errorf("prepare sqlite %q: %w", dsn, err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", dsn, err)
	}
	// One writer at a time; also keeps ":memory:" databases on one connection.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Open returns the store described by opts.
func Open(ctx context.Context, opts Options) (*Store, error) {
	switch opts.Kind {
	case KindSQLite, "":
		db, err := OpenSQLite(ctx, opts.DBPath)
		if err != nil {
			return nil, err
		}
		return &Store{Repository: metadata.NewSQLiteRepository(db, opts.Namespace), closer: db}, nil
	case KindKeyring:
		return &Store{Repository: metadata.NewKeyringRepository(opts.KeyringService, opts.Namespace)}, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", opts.Kind)
	}
}
