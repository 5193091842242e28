package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// WorkerRow is one line of the probe dashboard and summary.
type WorkerRow struct {
	Worker    int
	Target    string
	Succeeded int64
	Failed    int64
	Retries   int64
	LastError string
}

// ProbeHeaders are the column names of ProbeRows.
var ProbeHeaders = []string{"WORKER", "TARGET", "OK", "FAILED", "RETRIES", "LAST ERROR"}

// ProbeRows converts worker rows to table cells.
func ProbeRows(rows []WorkerRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			strconv.Itoa(r.Worker),
			r.Target,
			strconv.FormatInt(r.Succeeded, 10),
			strconv.FormatInt(r.Failed, 10),
			strconv.FormatInt(r.Retries, 10),
			truncate(r.LastError, 60),
		})
	}
	return out
}

type probeTickMsg time.Time

// ProbeModel is the bubbletea model of the live probe dashboard.
// It polls stats on every tick; the workers never talk to it directly.
type ProbeModel struct {
	spinner  spinner.Model
	quit     key.Binding
	stats    func() []WorkerRow
	onQuit   func()
	interval time.Duration
	started  time.Time
	now      time.Time
	rows     []WorkerRow
	quitting bool
}

// NewProbeModel creates a dashboard polling stats every interval.
// onQuit is called when the user presses q or ctrl+c.
func NewProbeModel(stats func() []WorkerRow, interval time.Duration, onQuit func()) ProbeModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	now := time.Now()
	return ProbeModel{
		spinner: s,
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "stop probe"),
		),
		stats:    stats,
		onQuit:   onQuit,
		interval: interval,
		started:  now,
		now:      now,
	}
}

func (m ProbeModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return probeTickMsg(t)
	})
}

// Init implements tea.Model.
func (m ProbeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

// Update implements tea.Model.
func (m ProbeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.quit) {
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}
	case probeTickMsg:
		m.now = time.Time(msg)
		m.rows = m.stats()
		return m, m.tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m ProbeModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	elapsed := m.now.Sub(m.started).Truncate(time.Second)
	fmt.Fprintf(&b, "%s %s %s\n\n",
		m.spinner.View(),
		TitleStyle.Render("Probing"),
		MutedStyle.Render(elapsed.String()))
	b.WriteString(RenderTable(ProbeHeaders, ProbeRows(m.rows), true))
	b.WriteString(HelpStyle.Render(m.quit.Help().Key + " " + m.quit.Help().Desc))
	b.WriteByte('\n')
	return b.String()
}

// Rows returns the rows of the last poll.
func (m ProbeModel) Rows() []WorkerRow {
	return m.rows
}

// RunProbeDashboard shows the dashboard on out until ctx is done or the
// user quits, in which case cancel is called.
func RunProbeDashboard(ctx context.Context, out io.Writer, stats func() []WorkerRow, cancel func()) error {
	model := NewProbeModel(stats, 250*time.Millisecond, cancel)
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithOutput(out),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("probe dashboard: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
