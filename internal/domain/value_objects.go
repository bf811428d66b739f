package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Optional - a value that may be absent
// -----------------------------------------------------------------------------

// Optional holds a value of T or nothing. The zero value is empty.
// It encodes to JSON as the value itself or null.
type Optional[T any] struct {
	value T
	valid bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, valid: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.valid
}

// Valid reports whether a value is present.
func (o Optional[T]) Valid() bool {
	return o.valid
}

// OrElse returns the value, or fallback when empty.
func (o Optional[T]) OrElse(fallback T) T {
	if o.valid {
		return o.value
	}
	return fallback
}

// MarshalJSON implements json.Marshaler
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// -----------------------------------------------------------------------------
// Question identity
// -----------------------------------------------------------------------------

// QuestionIDPrefix prefixes every generated question id.
const QuestionIDPrefix = "mcq-"

// NewQuestionID generates a stable identifier for a new question node.
func NewQuestionID() string {
	return QuestionIDPrefix + uuid.New().String()
}

// IsQuestionID reports whether id looks like a generated question id.
func IsQuestionID(id string) bool {
	return strings.HasPrefix(id, QuestionIDPrefix) && len(id) > len(QuestionIDPrefix)
}

// indexIs reports whether o holds exactly i.
func indexIs(o Optional[int], i int) bool {
	v, ok := o.Get()
	return ok && v == i
}
