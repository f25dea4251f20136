package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"
)

// recentRows is how many finished files the view lists.
const recentRows = 8

// Messages for TUI updates
type (
	resultMsg Result

	batchDoneMsg struct {
		results []Result
		stats   *Stats
	}

	memUsageMsg struct {
		Text string
	}
)

// batch publishes the runner's final output; done is closed once it is set.
type batch struct {
	done    chan struct{}
	results []Result
	stats   *Stats
}

type model struct {
	// batch
	total   int
	workers int
	done    int
	failed  int
	bytes   int64
	recent  []Result
	last    string
	results []Result
	stats   *Stats

	// session and timing
	start    time.Time
	finished bool
	quitting bool

	// window size
	width  int
	height int

	memUsageText string

	updates <-chan Result
	finish  *batch
	cancel  context.CancelFunc
}

func newModel(total, workers int, updates <-chan Result, finish *batch, cancel context.CancelFunc) model {
	return model{
		total:   total,
		workers: workers,
		start:   time.Now(),
		updates: updates,
		finish:  finish,
		cancel:  cancel,
	}
}

// runTUI runs the batch behind a bubbletea progress view. Quitting early
// cancels the remaining work; the batch still reports every file.
func runTUI(ctx context.Context, r *Runner, files []string, out *os.File) ([]Result, *Stats, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan Result, len(files))
	finish := &batch{done: make(chan struct{})}
	go func() {
		finish.results, finish.stats = r.Run(ctx, files, func(res Result) { updates <- res })
		close(updates)
		close(finish.done)
	}()

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	p := tea.NewProgram(newModel(len(files), workers, updates, finish, cancel),
		tea.WithAltScreen(), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, nil, fmt.Errorf("progress view: %w", err)
	}

	if m, ok := final.(model); ok && m.finished {
		return m.results, m.stats, nil
	}
	cancel()
	<-finish.done
	return finish.results, finish.stats, nil
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForResult(m.updates, m.finish), memUsageTick())
}

// waitForResult delivers the next finished file, then the batch summary once
// the updates channel is closed.
func waitForResult(updates <-chan Result, finish *batch) tea.Cmd {
	return func() tea.Msg {
		if res, ok := <-updates; ok {
			return resultMsg(res)
		}
		<-finish.done
		return batchDoneMsg{results: finish.results, stats: finish.stats}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.finished && m.cancel != nil {
				m.cancel()
			}
			m.quitting = true
			return m, tea.Quit
		case "enter":
			if m.finished {
				m.quitting = true
				return m, tea.Quit
			}
		}
		return m, nil

	case resultMsg:
		res := Result(msg)
		m.done++
		if res.Err != nil {
			m.failed++
		} else {
			m.bytes += int64(len(res.Text))
		}
		m.last = res.Path
		m.recent = append(m.recent, res)
		if len(m.recent) > recentRows {
			m.recent = m.recent[len(m.recent)-recentRows:]
		}
		return m, waitForResult(m.updates, m.finish)

	case batchDoneMsg:
		m.finished = true
		m.results = msg.results
		m.stats = msg.stats
		return m, nil

	case memUsageMsg:
		m.memUsageText = msg.Text
		if m.finished {
			return m, nil
		}
		return m, memUsageTick()
	}
	return m, nil
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	if m.quitting {
		return ""
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, headerStyle.Render(fmt.Sprintf("textract v%s", version)))
	lines = append(lines, "")
	lines = append(lines, subHeaderStyle.Render(fmt.Sprintf("📄 Extracting: %d files", m.total)))

	engine := fmt.Sprintf("⚙️ Engine: Workers %d%s", m.workers, m.memUsageText)
	lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#bb9af7")).Render(engine))

	elapsed := time.Since(m.start)
	if m.finished && m.stats != nil {
		elapsed = m.stats.Elapsed
	}
	timing := fmt.Sprintf("⏱️ Elapsed: %s • Text: %s", elapsed.Round(100*time.Millisecond), formatBytes(m.bytes))
	lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68")).Render(timing))

	lines = append(lines, progressBar(m.done, m.total, min(width-20, 50)))
	if m.finished {
		summary := fmt.Sprintf("✓ Done: %d extracted, %d failed", m.done-m.failed, m.failed)
		if m.failed > 0 {
			lines = append(lines, warningStyle.Render(summary))
		} else {
			lines = append(lines, successStyle.Render(summary))
		}
	} else {
		current := "⏳ Processing"
		if m.last != "" {
			current = fmt.Sprintf("⏳ [%d/%d]: %s", m.done, m.total, m.last)
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#7dcfff")).Render(current))
	}

	var box []string
	if len(m.recent) == 0 {
		box = append(box, infoStyle.Render("Waiting for the first file..."))
	}
	for _, r := range m.recent {
		box = append(box, resultLine(r, width-10))
	}
	lines = append(lines, appStyle.Width(width-4).Render(strings.Join(box, "\n")))

	footer := "🔚 'q' quit"
	if m.finished {
		footer = "🔚 'ENTER' or 'q' exit"
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(footer))
	return strings.Join(lines, "\n")
}

func resultLine(r Result, width int) string {
	name := filepath.Base(r.Path)
	if r.Err != nil {
		return wrapTextWithIndent(errorStyle.Render("✗ "), fmt.Sprintf("%s [%s]: %v", name, failureKind(r.Err), r.Err), width)
	}
	return successStyle.Render("✓ ") + infoStyle.Render(fmt.Sprintf("%s (%s, %s)",
		name, formatBytes(int64(len(r.Text))), r.Duration.Round(time.Millisecond)))
}

func progressBar(done, total, width int) string {
	if width < 10 {
		width = 10
	}
	filled := 0
	if total > 0 {
		filled = done * width / total
	}
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a")).Render(strings.Repeat("█", filled)) +
		separatorStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, done, total)
}

func memUsageTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		heap, rss, cpu := sampleMemoryAndCPU()
		return memUsageMsg{Text: fmt.Sprintf(" • Heap %5.1f MB • Max RSS %5.1f MB • CPU %5.1f%%",
			float64(heap)/(1024*1024), float64(rss)/(1024*1024), cpu)}
	})
}

var (
	lastCPUWall   time.Time
	lastCPUProc   time.Duration
	haveCPUSample bool
)

// sampleMemoryAndCPU is only called from the view's tick command, one at a time.
func sampleMemoryAndCPU() (heap, rss uint64, cpu float64) {
	var rusage unix.Rusage
	_ = unix.Getrusage(unix.RUSAGE_SELF, &rusage)
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	heap = ms.HeapAlloc
	rss = uint64(rusage.Maxrss * 1024) // KB to bytes

	nowWall := time.Now()
	user := time.Duration(rusage.Utime.Sec)*time.Second + time.Duration(rusage.Utime.Usec)*time.Microsecond
	sys := time.Duration(rusage.Stime.Sec)*time.Second + time.Duration(rusage.Stime.Usec)*time.Microsecond
	nowProc := user + sys
	if haveCPUSample {
		wallDiff := nowWall.Sub(lastCPUWall)
		procDiff := nowProc - lastCPUProc
		if wallDiff > 0 {
			cpu = max(procDiff.Seconds()/wallDiff.Seconds()*100, 0)
		}
	}
	lastCPUWall = nowWall
	lastCPUProc = nowProc
	haveCPUSample = true
	return heap, rss, cpu
}
