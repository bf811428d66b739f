package local

import (
	"context"
	"errors"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
)

const documentsCollection = "documents"

// DocumentStore saves document snapshots as JSON files.
type DocumentStore struct {
	store *Store
}

var _ document.SnapshotStore = (*DocumentStore)(nil)

func NewDocumentStore(store *Store) *DocumentStore {
	return &DocumentStore{store: store}
}

func (d *DocumentStore) SaveSnapshot(ctx context.Context, s document.Snapshot) error {
	return d.store.Save(documentsCollection, s.ID, s)
}

func (d *DocumentStore) LoadSnapshot(ctx context.Context, id string) (document.Snapshot, error) {
	var s document.Snapshot
	err := d.store.Load(documentsCollection, id, &s)
	if errors.Is(err, ErrNotFound) {
		return document.Snapshot{}, document.ErrSnapshotNotFound
	}
	return s, err
}

// IDs lists the stored documents.
func (d *DocumentStore) IDs() ([]string, error) {
	return d.store.List(documentsCollection)
}
