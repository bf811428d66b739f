package document

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
)

type eventLog struct {
	events []Event
}

func (l *eventLog) listen(d *Document) func() {
	s1 := d.On(EventTransaction, func() { l.events = append(l.events, EventTransaction) })
	s2 := d.On(EventUpdate, func() { l.events = append(l.events, EventUpdate) })
	return func() {
		s1.Unsubscribe()
		s2.Unsubscribe()
	}
}

func TestDocument_SetEditableEmitsUpdate(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	var log eventLog
	stop := log.listen(d)
	defer stop()

	assert.True(t, d.SetEditable(false))
	assert.False(t, d.IsEditable())
	assert.False(t, d.SetEditable(false))

	assert.Equal(t, []Event{EventUpdate}, log.events)
}

func TestDocument_MutationEmitsBothChannels(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	var log eventLog
	stop := log.listen(d)
	defer stop()

	_, err := d.AppendNode(domain.NewQuestionNode())
	require.NoError(t, err)

	assert.Equal(t, []Event{EventTransaction, EventUpdate}, log.events)
	assert.Equal(t, uint64(1), d.Version())
}

func TestDocument_FailedUpdateEmitsNothing(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	key, err := d.AppendNode(domain.NewQuestionNode())
	require.NoError(t, err)

	var log eventLog
	stop := log.listen(d)
	defer stop()

	err = d.UpdateQuestion(key, func(q *domain.QuestionNode) error {
		q.Choices = q.Choices[:1]
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrTooFewChoices)
	assert.Empty(t, log.events)

	q, err := d.Question(key)
	require.NoError(t, err)
	assert.Len(t, q.Choices, 2)
}

func TestDocument_UpdateWrongKind(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	key, err := d.AppendNode(domain.NewCodeNode(domain.None[string]()))
	require.NoError(t, err)

	err = d.UpdateQuestion(key, func(*domain.QuestionNode) error { return nil })
	assert.ErrorIs(t, err, ErrWrongNodeKind)

	_, err = d.Question(key)
	assert.ErrorIs(t, err, ErrWrongNodeKind)
}

func TestDocument_NodeReturnsCopy(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	key, _ := d.AppendNode(domain.NewQuestionNode())
	q, err := d.Question(key)
	require.NoError(t, err)
	q.Choices[0] = "mutated"

	again, _ := d.Question(key)
	assert.Equal(t, "Option 1", again.Choices[0])
}

func TestDocument_InsertNode(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		r     Range
		kinds []BlockKind
		texts []string
	}{
		{
			name:  "replaces whole block",
			text:  "/quiz",
			r:     Range{Block: 0, From: 0, To: 5},
			kinds: []BlockKind{BlockNode},
			texts: []string{""},
		},
		{
			name:  "keeps left text",
			text:  "intro /quiz",
			r:     Range{Block: 0, From: 6, To: 11},
			kinds: []BlockKind{BlockParagraph, BlockNode},
			texts: []string{"intro ", ""},
		},
		{
			name:  "splits around node",
			text:  "a /q b",
			r:     Range{Block: 0, From: 2, To: 4},
			kinds: []BlockKind{BlockParagraph, BlockNode, BlockParagraph},
			texts: []string{"a ", "", " b"},
		},
		{
			name:  "keeps right text",
			text:  "/q tail",
			r:     Range{Block: 0, From: 0, To: 2},
			kinds: []BlockKind{BlockNode, BlockParagraph},
			texts: []string{"", " tail"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New("doc", true)
			defer d.Close()
			_, err := d.AppendText(BlockParagraph, tt.text)
			require.NoError(t, err)

			key, err := d.InsertNode(tt.r, domain.NewQuestionNode())
			require.NoError(t, err)

			blocks := d.Blocks()
			var kinds []BlockKind
			var texts []string
			for _, b := range blocks {
				kinds = append(kinds, b.Kind)
				texts = append(texts, b.Text)
			}
			if diff := cmp.Diff(tt.kinds, kinds); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.texts, texts); diff != "" {
				t.Errorf("texts mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, []string{key}, d.NodeKeys())
		})
	}
}

func TestDocument_InsertNodeInvalidRange(t *testing.T) {
	d := New("doc", true)
	defer d.Close()
	_, _ = d.AppendText(BlockParagraph, "abc")

	_, err := d.InsertNode(Range{Block: 0, From: 2, To: 9}, domain.NewQuestionNode())
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = d.InsertNode(Range{Block: 3}, domain.NewQuestionNode())
	assert.ErrorIs(t, err, ErrInvalidRange)

	assert.Equal(t, uint64(1), d.Version(), "failed inserts do not count as mutations")
}

func TestDocument_SetBlockKind(t *testing.T) {
	d := New("doc", true)
	defer d.Close()
	_, _ = d.AppendText(BlockParagraph, "/head Title")

	require.NoError(t, d.SetBlockKind(Range{Block: 0, From: 0, To: 6}, BlockHeading1))

	blocks := d.Blocks()
	assert.Equal(t, BlockHeading1, blocks[0].Kind)
	assert.Equal(t, "Title", blocks[0].Text)

	assert.ErrorIs(t, d.SetBlockKind(Range{Block: 0}, BlockNode), ErrNotTextBlock)
}

func TestDocument_DeleteNode(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	key, _ := d.AppendNode(domain.NewQuestionNode())
	require.NoError(t, d.DeleteNode(key))
	assert.Empty(t, d.NodeKeys())
	assert.ErrorIs(t, d.DeleteNode(key), ErrNodeNotFound)
	_, err := d.Node(key)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDocument_HandlersMayMutate(t *testing.T) {
	d := New("doc", true)
	defer d.Close()
	key, _ := d.AppendNode(domain.NewQuestionNode())
	require.NoError(t, d.UpdateQuestion(key, func(q *domain.QuestionNode) error { return q.Select(0) }))

	sub := d.On(EventUpdate, func() {
		q, err := d.Question(key)
		if err != nil || d.IsEditable() || !q.SelectedChoice.Valid() {
			return
		}
		_ = d.UpdateQuestion(key, func(q *domain.QuestionNode) error {
			q.ClearSelection()
			return nil
		})
	})
	defer sub.Unsubscribe()

	d.SetEditable(false)
	assert.Equal(t, uint64(3), d.Version())
	q, _ := d.Question(key)
	assert.False(t, q.SelectedChoice.Valid())
}

func TestDocument_Unsubscribe(t *testing.T) {
	d := New("doc", true)
	defer d.Close()

	sub := d.On(EventTransaction, func() {})
	assert.Equal(t, 1, d.Listeners(EventTransaction))
	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, d.Listeners(EventTransaction))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	d := New("doc-1", false)
	defer d.Close()
	_, _ = d.AppendText(BlockHeading1, "Lesson")
	q := domain.NewQuestionNode()
	_ = q.SetCorrect(1)
	_, _ = d.AppendNode(q)
	c := domain.NewCodeNode(domain.Some("print(2*2)\n"))
	c.AddTestCase(domain.TestCase{ExpectedOutput: "4"})
	_, _ = d.AppendNode(c)

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var s Snapshot
	require.NoError(t, json.Unmarshal(data, &s))
	back, err := FromSnapshot(s)
	require.NoError(t, err)
	defer back.Close()

	assert.Equal(t, "doc-1", back.ID())
	assert.False(t, back.IsEditable())

	keys := back.NodeKeys()
	require.Len(t, keys, 2)
	gotQ, err := back.Question(keys[0])
	require.NoError(t, err)
	assert.Equal(t, q.ID, gotQ.ID)
	assert.Equal(t, domain.Some(1), gotQ.CorrectChoice)

	gotC, err := back.Code(keys[1])
	require.NoError(t, err)
	if diff := cmp.Diff(c, gotC, cmp.AllowUnexported(domain.Optional[string]{})); diff != "" {
		t.Errorf("code node mismatch (-want +got):\n%s", diff)
	}
}

func TestFromSnapshot_AssignsMissingID(t *testing.T) {
	s := Snapshot{ID: "d", Blocks: []SnapshotBlock{
		{Type: "mcq", Attrs: json.RawMessage(`{"question":"Q","choices":["a","b"]}`)},
	}}
	d, err := FromSnapshot(s)
	require.NoError(t, err)
	defer d.Close()

	q, err := d.Question(d.NodeKeys()[0])
	require.NoError(t, err)
	assert.True(t, domain.IsQuestionID(q.ID))
}

func TestFromSnapshot_Errors(t *testing.T) {
	_, err := FromSnapshot(Snapshot{Blocks: []SnapshotBlock{{Type: "video"}}})
	assert.ErrorIs(t, err, domain.ErrUnknownNodeKind)

	_, err = FromSnapshot(Snapshot{Blocks: []SnapshotBlock{
		{Type: "mcq", Attrs: json.RawMessage(`{"id":"mcq-1","choices":["only"]}`)},
	}})
	assert.ErrorIs(t, err, domain.ErrTooFewChoices)
}

func TestDocument_Restore(t *testing.T) {
	d := New("d", false)
	defer d.Close()
	_, err := d.AppendText(BlockParagraph, "old")
	require.NoError(t, err)

	var transactions int
	sub := d.On(EventTransaction, func() { transactions++ })
	defer sub.Unsubscribe()

	err = d.Restore(Snapshot{Editable: true, Blocks: []SnapshotBlock{
		{Type: "heading1", Text: "Intro"},
		{Type: "pythonCodeBlock", Attrs: json.RawMessage(`{"code":"print(1)"}`)},
	}})
	require.NoError(t, err)

	blocks := d.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "Intro", blocks[0].Text)
	assert.False(t, d.IsEditable(), "restore leaves the mode alone")
	assert.Equal(t, 1, transactions)

	err = d.Restore(Snapshot{Blocks: []SnapshotBlock{{Type: "video"}}})
	assert.ErrorIs(t, err, domain.ErrUnknownNodeKind)
	assert.Len(t, d.Blocks(), 2, "failed restore keeps the content")
}
