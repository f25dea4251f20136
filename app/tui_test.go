package app

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textract/extract"
)

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func TestModel_Progress(t *testing.T) {
	updates := make(chan Result, 16)
	m := newModel(12, 2, updates, &batch{done: make(chan struct{})}, nil)

	m, cmd := update(t, m, resultMsg{Path: "/docs/a.txt", Text: "hello"})
	assert.NotNil(t, cmd)
	m, _ = update(t, m, resultMsg{Path: "/docs/b.docx", Err: extract.EmptyResult("splitter", "/docs/b.docx")})

	assert.Equal(t, 2, m.done)
	assert.Equal(t, 1, m.failed)
	assert.Equal(t, int64(5), m.bytes)

	view := m.View()
	assert.Contains(t, view, "[2/12]: /docs/b.docx")
	assert.Contains(t, view, "a.txt")
	assert.Contains(t, view, "[empty]")
	assert.Contains(t, view, "'q' quit")

	for i := 0; i < 10; i++ {
		m, _ = update(t, m, resultMsg{Path: "/docs/more.txt", Text: "x"})
	}
	assert.Len(t, m.recent, recentRows)
}

func TestModel_Finished(t *testing.T) {
	m := newModel(2, 1, nil, nil, nil)
	m, _ = update(t, m, resultMsg{Path: "a.txt", Text: "a"})
	m, _ = update(t, m, resultMsg{Path: "b.txt", Err: errors.New("nope")})

	stats := &Stats{Files: 2, Succeeded: 1, Failed: 1, Elapsed: time.Second}
	m, cmd := update(t, m, batchDoneMsg{stats: stats})
	assert.Nil(t, cmd)
	assert.True(t, m.finished)
	assert.Contains(t, m.View(), "Done: 1 extracted, 1 failed")

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.quitting)
}

func TestModel_QuitCancelsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newModel(3, 1, nil, nil, cancel)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "enter does nothing while running")
	assert.NoError(t, ctx.Err())

	_, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestWaitForResult(t *testing.T) {
	updates := make(chan Result, 1)
	finish := &batch{done: make(chan struct{})}

	updates <- Result{Path: "a.txt"}
	msg := waitForResult(updates, finish)()
	assert.Equal(t, resultMsg(Result{Path: "a.txt"}), msg)

	finish.results = []Result{{Path: "a.txt"}}
	finish.stats = &Stats{Files: 1}
	close(updates)
	close(finish.done)
	done, ok := waitForResult(updates, finish)().(batchDoneMsg)
	require.True(t, ok)
	assert.Equal(t, finish.results, done.results)
	assert.Equal(t, 1, done.stats.Files)
}

func TestProgressBar(t *testing.T) {
	assert.Contains(t, progressBar(5, 10, 20), "5/10")
	assert.Contains(t, progressBar(0, 0, 4), "0/0")
}
