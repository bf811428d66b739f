package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
)

// DocumentStore keeps the latest snapshot per document id.
type DocumentStore struct {
	db *DB
}

func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) SaveSnapshot(ctx context.Context, snap document.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, editable, snapshot, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			editable=excluded.editable, snapshot=excluded.snapshot,
			updated_at=excluded.updated_at`,
		snap.ID, snap.Editable, string(data))
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *DocumentStore) LoadSnapshot(ctx context.Context, id string) (document.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT snapshot FROM documents WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Snapshot{}, document.ErrSnapshotNotFound
	}
	if err != nil {
		return document.Snapshot{}, fmt.Errorf("query document: %w", err)
	}

	var snap document.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return document.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
