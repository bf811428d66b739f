package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
)

type record struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return store
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "subdir", "nested")
	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected directory, got file")
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save("items", "one", record{Name: "a", Value: 1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save("items", "one", record{Name: "b", Value: 2}); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}

	var got record
	if err := store.Load("items", "one", &got); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != (record{Name: "b", Value: 2}) {
		t.Errorf("Load() = %+v, want overwritten record", got)
	}

	entries, _ := os.ReadDir(filepath.Join(store.basePath, "items"))
	if len(entries) != 1 {
		t.Errorf("collection holds %d files, want 1 (no temp files left)", len(entries))
	}
}

func TestStore_NotFound(t *testing.T) {
	store := newTestStore(t)

	var got record
	if err := store.Load("items", "missing", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}
	if err := store.Delete("items", "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_DeleteAndExists(t *testing.T) {
	store := newTestStore(t)
	_ = store.Save("items", "one", record{})

	if !store.Exists("items", "one") {
		t.Fatal("Exists() = false after Save")
	}
	if err := store.Delete("items", "one"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if store.Exists("items", "one") {
		t.Error("Exists() = true after Delete")
	}
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)

	ids, err := store.List("empty")
	if err != nil || len(ids) != 0 {
		t.Fatalf("List(empty) = %v, %v", ids, err)
	}

	for _, id := range []string{"c", "a", "b"} {
		_ = store.Save("items", id, record{})
	}
	_ = os.WriteFile(filepath.Join(store.basePath, "items", "notes.txt"), []byte("x"), 0o644)

	ids, err = store.List("items")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if fmt.Sprint(ids) != "[a b c]" {
		t.Errorf("List() = %v, want [a b c]", ids)
	}
}

func TestStore_InvalidID(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"", ".", "..", "../escape", `a\b`} {
		if err := store.Save("items", id, record{}); !errors.Is(err, ErrInvalidID) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidID", id, err)
		}
		if store.Exists("items", id) {
			t.Errorf("Exists(%q) = true", id)
		}
	}
}

func TestStore_Concurrency(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(n int) {
			defer wg.Done()
			_ = store.Save("concurrent", fmt.Sprintf("r%d", n), record{Value: n})
		}(i)
		go func() {
			defer wg.Done()
			_, _ = store.List("concurrent")
		}()
		go func(n int) {
			defer wg.Done()
			store.Exists("concurrent", fmt.Sprintf("r%d", n))
		}(i)
	}
	wg.Wait()

	ids, _ := store.List("concurrent")
	if len(ids) != 10 {
		t.Errorf("List() len = %d, want 10", len(ids))
	}
}

func TestDocumentStore(t *testing.T) {
	docs := NewDocumentStore(newTestStore(t))
	ctx := context.Background()

	if _, err := docs.LoadSnapshot(ctx, "doc-1"); !errors.Is(err, document.ErrSnapshotNotFound) {
		t.Fatalf("LoadSnapshot() error = %v, want ErrSnapshotNotFound", err)
	}

	d := document.New("doc-1", false)
	if _, err := d.AppendText(document.BlockHeading1, "Loops"); err != nil {
		t.Fatalf("AppendText() error = %v", err)
	}
	snap, err := d.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if err := docs.SaveSnapshot(ctx, snap); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, err := docs.LoadSnapshot(ctx, "doc-1")
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if got.Editable || len(got.Blocks) != 1 || got.Blocks[0].Text != "Loops" {
		t.Errorf("LoadSnapshot() = %+v", got)
	}

	ids, _ := docs.IDs()
	if len(ids) != 1 || ids[0] != "doc-1" {
		t.Errorf("IDs() = %v", ids)
	}
}
