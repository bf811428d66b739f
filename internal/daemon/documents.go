package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
)

const maxDocumentBytes = 4 << 20

var (
	errInvalidDocumentID = errors.New("invalid document id")
	errInvalidDocument   = errors.New("invalid document")
)

// documentSet keeps open documents in memory and writes every change
// through to the snapshot store.
type documentSet struct {
	mu    sync.Mutex
	docs  map[string]*document.Document
	store document.SnapshotStore
}

func newDocumentSet(store document.SnapshotStore) *documentSet {
	return &documentSet{
		docs:  make(map[string]*document.Document),
		store: store,
	}
}

// load returns the open document or reads it from the store.
func (s *documentSet) load(ctx context.Context, id string) (*document.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.docs[id]; ok {
		return d, nil
	}
	if s.store == nil {
		return nil, document.ErrSnapshotNotFound
	}
	snap, err := s.store.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.ID = id
	d, err := document.FromSnapshot(snap)
	if err != nil {
		return nil, fmt.Errorf("rebuild document %s: %w", id, err)
	}
	s.docs[id] = d
	return d, nil
}

// put replaces the content of id, creating the document when needed. A new
// document takes its mode from the snapshot; an existing one keeps its mode.
func (s *documentSet) put(ctx context.Context, id string, snap document.Snapshot) (*document.Document, error) {
	d, err := s.load(ctx, id)
	switch {
	case errors.Is(err, document.ErrSnapshotNotFound):
		snap.ID = id
		d, err = document.FromSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidDocument, err)
		}
		s.mu.Lock()
		if existing, ok := s.docs[id]; ok {
			d.Close()
			d = existing
			s.mu.Unlock()
			if err := d.Restore(snap); err != nil {
				return nil, fmt.Errorf("%w: %w", errInvalidDocument, err)
			}
		} else {
			s.docs[id] = d
			s.mu.Unlock()
		}
	case err != nil:
		return nil, err
	default:
		if err := d.Restore(snap); err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidDocument, err)
		}
	}
	return d, s.save(ctx, d)
}

func (s *documentSet) save(ctx context.Context, d *document.Document) error {
	if s.store == nil {
		return nil
	}
	snap, err := d.Snapshot()
	if err != nil {
		return err
	}
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("save document %s: %w", d.ID(), err)
	}
	return nil
}

func (s *documentSet) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, d := range s.docs {
		d.Close()
		delete(s.docs, id)
	}
}

// validDocumentID keeps ids usable as file names and URL segments.
func validDocumentID(id string) bool {
	if id == "" || len(id) > 128 || id[0] == '.' {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

func (s *Server) documentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !validDocumentID(id) {
		s.jsonError(w, http.StatusBadRequest, "Invalid document id", errInvalidDocumentID)
		return "", false
	}
	return id, true
}

func (s *Server) openDocument(w http.ResponseWriter, r *http.Request) (*document.Document, bool) {
	id, ok := s.documentID(w, r)
	if !ok {
		return nil, false
	}
	d, err := s.documents.load(r.Context(), id)
	if errors.Is(err, document.ErrSnapshotNotFound) {
		s.jsonError(w, http.StatusNotFound, "Document not found", nil)
		return nil, false
	}
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Failed to load document", err)
		return nil, false
	}
	return d, true
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	d, ok := s.openDocument(w, r)
	if !ok {
		return
	}
	snap, err := d.Snapshot()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Failed to read document", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, snap)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := s.documentID(w, r)
	if !ok {
		return
	}

	var snap document.Snapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&snap); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	d, err := s.documents.put(r.Context(), id, snap)
	if err != nil {
		if errors.Is(err, errInvalidDocument) {
			s.jsonError(w, http.StatusBadRequest, "Invalid document", err)
			return
		}
		s.jsonError(w, http.StatusInternalServerError, "Failed to save document", err)
		return
	}

	saved, err := d.Snapshot()
	if err != nil {
		s.jsonError(w, http.StatusInternalServerError, "Failed to read document", err)
		return
	}
	s.logger.Info("document saved", "document_id", id, "blocks", len(saved.Blocks))
	s.jsonResponse(w, http.StatusOK, saved)
}

type modeRequest struct {
	Editable *bool `json:"editable"`
}

type modeResponse struct {
	Success    bool   `json:"success"`
	DocumentID string `json:"documentId"`
	Editable   bool   `json:"editable"`
	Changed    bool   `json:"changed"`
}

func (s *Server) handleGetMode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.openDocument(w, r)
	if !ok {
		return
	}
	s.jsonResponse(w, http.StatusOK, modeResponse{
		Success:    true,
		DocumentID: d.ID(),
		Editable:   d.IsEditable(),
	})
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	d, ok := s.openDocument(w, r)
	if !ok {
		return
	}

	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Editable == nil {
		s.jsonError(w, http.StatusBadRequest, "editable is required", nil)
		return
	}

	changed := d.SetEditable(*req.Editable)
	if changed {
		if err := s.documents.save(r.Context(), d); err != nil {
			s.jsonError(w, http.StatusInternalServerError, "Failed to save document", err)
			return
		}
		s.hub.Broadcast(d.ID(), *req.Editable)
		s.logger.Info("document mode changed", "document_id", d.ID(), "editable", *req.Editable)
	}

	s.jsonResponse(w, http.StatusOK, modeResponse{
		Success:    true,
		DocumentID: d.ID(),
		Editable:   d.IsEditable(),
		Changed:    changed,
	})
}

func (s *Server) handleModeStream(w http.ResponseWriter, r *http.Request) {
	d, ok := s.openDocument(w, r)
	if !ok {
		return
	}
	s.hub.serve(&s.upgrader, w, r, d.ID(), d.IsEditable())
}
