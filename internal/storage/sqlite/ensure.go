package sqlite

import (
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/submission"
)

var (
	_ submission.Store       = (*SubmissionStore)(nil)
	_ document.SnapshotStore = (*DocumentStore)(nil)
)
