package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// Returned by node mutations when an edit would break a node invariant.
// -----------------------------------------------------------------------------

// Question errors
var (
	ErrTooFewChoices    = errors.New("question needs at least two choices")
	ErrChoiceOutOfRange = errors.New("choice index out of range")
	ErrMissingID        = errors.New("question has no id")
)

// Code errors
var (
	ErrTestCaseOutOfRange  = errors.New("test case index out of range")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Node errors
var (
	ErrUnknownNodeKind = errors.New("unknown node kind")
)
