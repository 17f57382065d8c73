// Package publishindex remembers which files have already been published so a
// re-run does not upload them again.
package publishindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS published (
	fingerprint  TEXT NOT NULL,
	folder_path  TEXT NOT NULL,
	filename     TEXT NOT NULL,
	dataset      TEXT NOT NULL,
	asset_id     TEXT NOT NULL,
	document_id  TEXT NOT NULL,
	public_url   TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '',
	published_at TIMESTAMP NOT NULL,
	PRIMARY KEY (fingerprint, folder_path, filename, dataset)
)`

// Key identifies one published file
type Key struct {
	Fingerprint string
	FolderPath  string
	Filename    string
	Dataset     string
}

// Entry is a previously recorded publish. Metadata is a digest of the
// document fields that were sent; a different digest means the remote
// document is stale.
type Entry struct {
	Key
	AssetID     string
	DocumentID  string
	PublicURL   string
	Metadata    string
	PublishedAt time.Time
}

// Index is a SQLite table of published files
type Index struct {
	db *sql.DB
}

// Open creates or opens the index at path
func Open(ctx context.Context, path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open publish index: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create publish index schema: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Index{db: db}, nil
}

// migrate adds the metadata column to indexes created before it existed
func migrate(ctx context.Context, db *sql.DB) error {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info('published') WHERE name = 'metadata'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect publish index schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE published ADD COLUMN metadata TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("migrate publish index: %w", err)
	}
	return nil
}

// Lookup returns the entry for key, if one was recorded
func (i *Index) Lookup(ctx context.Context, key Key) (Entry, bool, error) {
	row := i.db.QueryRowContext(ctx, `
		SELECT asset_id, document_id, public_url, metadata, published_at
		FROM published
		WHERE fingerprint = ? AND folder_path = ? AND filename = ? AND dataset = ?`,
		key.Fingerprint, key.FolderPath, key.Filename, key.Dataset)

	entry := Entry{Key: key}
	err := row.Scan(&entry.AssetID, &entry.DocumentID, &entry.PublicURL, &entry.Metadata, &entry.PublishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("lookup publish index: %w", err)
	}
	return entry, true, nil
}

// Record upserts entry
func (i *Index) Record(ctx context.Context, entry Entry) error {
	if entry.PublishedAt.IsZero() {
		entry.PublishedAt = time.Now().UTC()
	}

	_, err := i.db.ExecContext(ctx, `
		INSERT INTO published (fingerprint, folder_path, filename, dataset, asset_id, document_id, public_url, metadata, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (fingerprint, folder_path, filename, dataset) DO UPDATE SET
			asset_id = excluded.asset_id,
			document_id = excluded.document_id,
			public_url = excluded.public_url,
			metadata = excluded.metadata,
			published_at = excluded.published_at`,
		entry.Fingerprint, entry.FolderPath, entry.Filename, entry.Dataset,
		entry.AssetID, entry.DocumentID, entry.PublicURL, entry.Metadata, entry.PublishedAt)
	if err != nil {
		return fmt.Errorf("record publish index: %w", err)
	}
	return nil
}

// Count returns the number of recorded entries
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	if err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM published`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count publish index: %w", err)
	}
	return n, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}
