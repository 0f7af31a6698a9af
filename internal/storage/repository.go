package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"heristone/internal/store"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores document blobs in a single SQLite table and keeps
// track of which version was last exported by the sync worker.
type SQLiteRepository struct {
	db *sql.DB
}

// PendingDocument is a stored document whose latest version has not been
// exported yet.
type PendingDocument struct {
	Key           string
	Version       int64
	SyncedVersion int64
	Deleted       bool
	UpdatedAt     time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialize on our side instead of hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping implements store.Pinger
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get implements store.BlobStore
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var (
		body    []byte
		version int64
		deleted bool
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT body, version, deleted FROM documents WHERE key = ?`, key,
	).Scan(&body, &version, &deleted)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && deleted) {
		return nil, 0, fmt.Errorf("key %q: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get document %q: %w", key, err)
	}
	return body, version, nil
}

// Put implements store.BlobStore. The version is bumped on every write.
func (r *SQLiteRepository) Put(ctx context.Context, key string, body []byte) (int64, error) {
	var version int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO documents (key, body, version, deleted, updated_at)
		VALUES (?, ?, 1, 0, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			version = documents.version + 1,
			deleted = 0,
			updated_at = excluded.updated_at
		RETURNING version`,
		key, body, time.Now().UTC(),
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("put document %q: %w", key, err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite",
		"key", key,
		"version", version,
		"bytes", len(body))

	return version, nil
}

// Delete implements store.BlobStore. The row stays behind as a tombstone
// with a bumped version so PendingSync still reports the deletion; Get
// treats it as missing and the next Put revives it.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET
			body = x'',
			deleted = 1,
			version = version + 1,
			updated_at = ?
		WHERE key = ? AND deleted = 0`,
		time.Now().UTC(), key)
	if err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.InfoContext(ctx, "Document deleted from SQLite", "key", key)
	}
	return nil
}

// PendingSync lists documents whose current version is newer than the last
// exported one, oldest change first. Deleted keys are included.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingDocument, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT key, version, synced_version, deleted, updated_at
		FROM documents
		WHERE version > synced_version
		ORDER BY updated_at
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending documents: %w", err)
	}
	defer rows.Close()

	var out []PendingDocument
	for rows.Next() {
		var p PendingDocument
		if err := rows.Scan(&p.Key, &p.Version, &p.SyncedVersion, &p.Deleted, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pending document: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced records that version of key was exported. An older version
// never overwrites a newer mark.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, key string, version int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET synced_version = ?
		WHERE key = ? AND synced_version < ?`,
		version, key, version)
	if err != nil {
		return fmt.Errorf("mark document %q synced: %w", key, err)
	}
	slog.InfoContext(ctx, "Document marked as synced", "key", key, "version", version)
	return nil
}
