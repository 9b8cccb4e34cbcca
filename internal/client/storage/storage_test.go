package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/dmitrijs2005/invoicedesk/internal/client/repositories/metadata"
)

func TestOpen_SQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")
	opts := Options{Kind: KindSQLite, DBPath: path, Namespace: "auth"}

	s, err := Open(ctx, opts)
	require.NoError(t, err)
	require.IsType(t, &metadata.SQLiteRepository{}, s.Repository)
	require.NoError(t, s.Set(ctx, "session", []byte("snapshot")))
	require.NoError(t, s.Close())

	s, err = Open(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	v, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), v)
}

func TestOpen_SQLite_CreatesParentDirectory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.db")

	s, err := Open(ctx, Options{Kind: KindSQLite, DBPath: path, Namespace: "auth"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Set(ctx, "session", []byte("x")))
	assert.FileExists(t, path)
}

func TestOpen_Keyring(t *testing.T) {
	keyring.MockInit()

	s, err := Open(context.Background(), Options{Kind: KindKeyring, KeyringService: "invoicedesk-test", Namespace: "auth"})
	require.NoError(t, err)
	assert.IsType(t, &metadata.KeyringRepository{}, s.Repository)
	assert.NoError(t, s.Close())
}

func TestOpen_UnknownKind(t *testing.T) {
	_, err := Open(context.Background(), Options{Kind: "etcd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown session store "etcd"`)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(ctx, db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM metadata`).Scan(&n))
	assert.Zero(t, n)
}

func TestOpenSQLite_MigrationError(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	_, err := OpenSQLite(context.Background(), ":memory:")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations: boom")
}
