package document

import (
	"context"
	"errors"
)

// ErrSnapshotNotFound is returned by a SnapshotStore for unknown ids.
var ErrSnapshotNotFound = errors.New("document snapshot not found")

// SnapshotStore persists snapshots by document id.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s Snapshot) error
	LoadSnapshot(ctx context.Context, id string) (Snapshot, error)
}
