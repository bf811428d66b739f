package domain

import (
	"encoding/json"
	"testing"
)

func TestOptional(t *testing.T) {
	t.Run("zero value is empty", func(t *testing.T) {
		var o Optional[int]
		if o.Valid() {
			t.Error("Valid() = true, want false")
		}
		if got := o.OrElse(7); got != 7 {
			t.Errorf("OrElse() = %d, want 7", got)
		}
	})

	t.Run("Some holds value", func(t *testing.T) {
		o := Some(0)
		v, ok := o.Get()
		if !ok || v != 0 {
			t.Errorf("Get() = (%d, %v), want (0, true)", v, ok)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		tests := []struct {
			name string
			in   Optional[int]
			want string
		}{
			{"none", None[int](), "null"},
			{"zero", Some(0), "0"},
			{"value", Some(3), "3"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				data, err := json.Marshal(tt.in)
				if err != nil {
					t.Fatalf("Marshal() error = %v", err)
				}
				if string(data) != tt.want {
					t.Errorf("Marshal() = %s, want %s", data, tt.want)
				}

				var back Optional[int]
				if err := json.Unmarshal(data, &back); err != nil {
					t.Fatalf("Unmarshal() error = %v", err)
				}
				if back != tt.in {
					t.Errorf("Unmarshal() = %+v, want %+v", back, tt.in)
				}
			})
		}
	})

	t.Run("missing field decodes as none", func(t *testing.T) {
		var q QuestionNode
		if err := json.Unmarshal([]byte(`{"id":"mcq-1","choices":["a","b"]}`), &q); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if q.CorrectChoice.Valid() {
			t.Error("CorrectChoice should be none")
		}
	})
}

func TestNewQuestionID(t *testing.T) {
	a, b := NewQuestionID(), NewQuestionID()
	if a == b {
		t.Errorf("NewQuestionID() returned duplicate %q", a)
	}
	if !IsQuestionID(a) {
		t.Errorf("IsQuestionID(%q) = false, want true", a)
	}
	if IsQuestionID("mcq-") {
		t.Error("IsQuestionID(\"mcq-\") = true, want false")
	}
}
