package widget

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/document"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/domain"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/orchestrator"
	"github.com/shivamrawat1/tiptap-extensions-frontend/internal/remote"
)

func mountCode(t *testing.T, template domain.Optional[string], cfg CodeConfig) (*document.Document, *CodeWidget) {
	t.Helper()
	doc := document.New("doc", true)
	key, err := doc.AppendNode(domain.NewCodeNode(template))
	require.NoError(t, err)

	if cfg.HintDelay == 0 {
		cfg.HintDelay = 10 * time.Millisecond
	}
	w, err := MountCode(doc, key, cfg)
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return doc, w
}

func code(t *testing.T, w *CodeWidget) string {
	t.Helper()
	c, err := w.Node()
	require.NoError(t, err)
	return c.Code
}

func TestCodeWidget_Reset(t *testing.T) {
	t.Run("snapshot taken on lock", func(t *testing.T) {
		doc, w := mountCode(t, domain.Some("print('start')"), CodeConfig{})
		require.NoError(t, w.SetCode("print('authored')"))
		doc.SetEditable(false)

		require.NoError(t, w.SetCode("print('learner')"))
		require.NoError(t, w.Reset())
		assert.Equal(t, "print('authored')", code(t, w))
		assert.Equal(t, domain.Some("print('authored')"), w.State().Snapshot)
	})

	t.Run("template without snapshot", func(t *testing.T) {
		doc := document.New("doc", false)
		key, err := doc.AppendNode(domain.NewCodeNode(domain.Some("x = 1")))
		require.NoError(t, err)
		w, err := MountCode(doc, key, CodeConfig{})
		require.NoError(t, err)
		defer w.Close()

		require.NoError(t, w.SetCode("x = 2"))
		require.NoError(t, w.Reset())
		assert.Equal(t, "x = 1", code(t, w))
	})

	t.Run("placeholder without template", func(t *testing.T) {
		doc := document.New("doc", false)
		key, err := doc.AppendNode(domain.NewCodeNode(domain.None[string]()))
		require.NoError(t, err)
		w, err := MountCode(doc, key, CodeConfig{})
		require.NoError(t, err)
		defer w.Close()

		require.NoError(t, w.SetCode("x = 2"))
		require.NoError(t, w.Reset())
		assert.Equal(t, domain.DefaultCode, code(t, w))
	})

	t.Run("author mode refuses reset", func(t *testing.T) {
		_, w := mountCode(t, domain.None[string](), CodeConfig{})
		assert.ErrorIs(t, w.Reset(), ErrWrongMode)
	})
}

func TestCodeWidget_AuthorOnlyEdits(t *testing.T) {
	doc, w := mountCode(t, domain.None[string](), CodeConfig{})

	require.NoError(t, w.SetQuestion("Print 4 then 9"))
	require.NoError(t, w.SetTemplate(domain.Some("# start")))
	i, err := w.AddTestCase(domain.TestCase{ExpectedOutput: "4"})
	require.NoError(t, err)
	require.NoError(t, w.SetTestCase(i, domain.TestCase{ExpectedOutput: "5"}))
	_, err = w.AddTestCase(domain.TestCase{ExpectedOutput: "9"})
	require.NoError(t, err)
	require.NoError(t, w.RemoveTestCase(0))

	doc.SetEditable(false)
	assert.ErrorIs(t, w.SetQuestion("x"), ErrWrongMode)
	_, err = w.AddTestCase(domain.TestCase{})
	assert.ErrorIs(t, err, ErrWrongMode)
	assert.NoError(t, w.SetCode("print(4)"), "learners may edit code")

	c, err := w.Node()
	require.NoError(t, err)
	assert.Equal(t, "Print 4 then 9", c.Question)
	assert.Equal(t, "# start", c.TemplateCode())
	assert.Equal(t, []domain.TestCase{{ExpectedOutput: "9"}}, c.TestCases)
}

func TestCodeWidget_RunGrades(t *testing.T) {
	exec := &fakeExecutor{resp: &remote.ExecuteResponse{Success: true, Output: "4\n\n9\n"}}
	doc, w := mountCode(t, domain.None[string](), CodeConfig{Executor: exec})
	_, _ = w.AddTestCase(domain.TestCase{ExpectedOutput: "4"})
	_, _ = w.AddTestCase(domain.TestCase{ExpectedOutput: "9"})
	doc.SetEditable(false)

	v, err := w.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 2, v.Passed)
	assert.Nil(t, v.Mismatch)

	st := w.State()
	assert.Equal(t, "4\n\n9\n", st.Output)
	assert.Equal(t, "2/2 tests passed", st.Results.Summary())
}

func TestCodeWidget_RunWithoutTestCases(t *testing.T) {
	exec := &fakeExecutor{resp: &remote.ExecuteResponse{Success: true, Output: "hi\n"}}
	_, w := mountCode(t, domain.None[string](), CodeConfig{Executor: exec})

	v, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, "hi\n", w.State().Output)
}

func TestCodeWidget_RunFailureClearsResults(t *testing.T) {
	exec := &fakeExecutor{resp: &remote.ExecuteResponse{Success: true, Output: "4\n"}}
	_, w := mountCode(t, domain.None[string](), CodeConfig{Executor: exec})
	_, _ = w.AddTestCase(domain.TestCase{ExpectedOutput: "4"})

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, w.State().Results)

	exec.set(&remote.ExecuteResponse{Success: false, Output: "partial\n", Error: "Traceback"},
		&remote.Error{Kind: remote.ErrService, Message: "Traceback"})
	_, err = w.Run(context.Background())
	assert.ErrorIs(t, err, remote.ErrService)

	st := w.State()
	assert.Nil(t, st.Results)
	assert.Equal(t, "Traceback", st.Error)
	assert.Equal(t, "partial\n", st.Output)
}

func TestCodeWidget_RunInFlightRejected(t *testing.T) {
	exec := &fakeExecutor{
		resp:    &remote.ExecuteResponse{Success: true},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	_, w := mountCode(t, domain.None[string](), CodeConfig{Executor: exec})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := w.Run(context.Background())
		assert.NoError(t, err)
	}()

	<-exec.started
	assert.True(t, w.State().Running)
	_, err := w.Run(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrBusy)

	close(exec.block)
	wg.Wait()
	assert.Equal(t, 1, exec.Calls())
}

func TestCodeWidget_HintDebounced(t *testing.T) {
	hints := &fakeHints{}
	_, w := mountCode(t, domain.Some("# t"), CodeConfig{Hints: hints, HintDelay: 30 * time.Millisecond})
	require.NoError(t, w.SetQuestion("Sum a list"))

	require.NoError(t, w.SetCode("v1"))
	first := w.RequestHint(context.Background())
	require.NoError(t, w.SetCode("v2"))
	second := w.RequestHint(context.Background())
	assert.Greater(t, second, first)

	require.Eventually(t, func() bool { return w.State().HintVisible }, time.Second, 5*time.Millisecond)

	calls := hints.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, remote.HintRequest{TemplateCode: "# t", CurrentCode: "v2", Question: "Sum a list"}, calls[0])

	c, err := w.Node()
	require.NoError(t, err)
	assert.Equal(t, "hint for v2", c.Hint)
	assert.False(t, w.State().HintLoading)
}

func TestCodeWidget_StaleHintDiscarded(t *testing.T) {
	hints := &fakeHints{slow: "v1", release: make(chan struct{})}
	_, w := mountCode(t, domain.None[string](), CodeConfig{Hints: hints})

	require.NoError(t, w.SetCode("v1"))
	w.RequestHint(context.Background())
	require.Eventually(t, func() bool { return len(hints.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, w.SetCode("v2"))
	w.RequestHint(context.Background())
	require.Eventually(t, func() bool { return w.State().HintVisible }, time.Second, 5*time.Millisecond)

	close(hints.release)
	w.Close()

	c, err := w.Node()
	require.NoError(t, err)
	assert.Equal(t, "hint for v2", c.Hint)
	assert.Len(t, hints.Calls(), 2)
}

func TestCodeWidget_HintFailure(t *testing.T) {
	hints := &fakeHints{err: &remote.Error{Kind: remote.ErrTransport, Message: remote.FallbackHint}}
	_, w := mountCode(t, domain.None[string](), CodeConfig{Hints: hints})

	w.RequestHint(context.Background())
	require.Eventually(t, func() bool { return w.State().HintError != "" }, time.Second, 5*time.Millisecond)

	st := w.State()
	assert.Equal(t, remote.FallbackHint, st.HintError)
	assert.False(t, st.HintVisible)
	assert.False(t, st.HintLoading)
}

func TestCodeWidget_UnlockClearsRunState(t *testing.T) {
	exec := &fakeExecutor{resp: &remote.ExecuteResponse{Success: true, Output: "4\n"}}
	doc, w := mountCode(t, domain.None[string](), CodeConfig{Executor: exec})
	_, _ = w.AddTestCase(domain.TestCase{ExpectedOutput: "4"})
	doc.SetEditable(false)

	_, err := w.Run(context.Background())
	require.NoError(t, err)
	doc.SetEditable(true)

	st := w.State()
	assert.Empty(t, st.Output)
	assert.Nil(t, st.Results)
	assert.True(t, st.Editable)
}

func TestCodeWidget_ClosedWidget(t *testing.T) {
	_, w := mountCode(t, domain.None[string](), CodeConfig{})
	w.Close()

	assert.ErrorIs(t, w.SetCode("x"), ErrClosed)
	_, err := w.Run(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, w.RequestHint(context.Background()))
}
