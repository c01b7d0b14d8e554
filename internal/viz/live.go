package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ljmd/internal/dynamo"
)

const (
	canvasWidth  = 48
	canvasHeight = 18
	historyLen   = 200
)

type sampleMsg Sample
type streamClosedMsg struct{}

// DoneMsg reports the end of the run driving the view.
type DoneMsg struct{ Err error }

// Model is the bubbletea model of the live run dashboard.
type Model struct {
	title   string
	nsteps  int
	box     float64
	samples <-chan Sample
	done    <-chan error
	cancel  func()

	last     Sample
	history  []dynamo.State
	initial  float64
	maxDrift float64
	finished bool
	err      error
}

// NewModel builds a dashboard fed by feed. done must deliver the run's
// error (or nil) once; cancel stops the run when the user quits.
func NewModel(title string, p dynamo.Params, feed *Feed, done <-chan error, cancel func()) Model {
	return Model{
		title:   title,
		nsteps:  p.NSteps,
		box:     p.Box,
		samples: feed.Samples(),
		done:    done,
		cancel:  cancel,
	}
}

func waitSample(ch <-chan Sample) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return sampleMsg(s)
	}
}

func waitDone(ch <-chan error) tea.Cmd {
	return func() tea.Msg { return DoneMsg{Err: <-ch} }
}

func (m Model) Init() tea.Cmd {
	return waitSample(m.samples)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case sampleMsg:
		m.observe(Sample(msg))
		return m, waitSample(m.samples)
	case streamClosedMsg:
		return m, waitDone(m.done)
	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, nil
	}
	return m, nil
}

func (m *Model) observe(s Sample) {
	if len(m.history) == 0 {
		m.initial = s.State.Etot()
	}
	m.last = s
	m.history = append(m.history, s.State)
	if len(m.history) > historyLen {
		m.history = m.history[1:]
	}
	if m.initial != 0 {
		m.maxDrift = math.Max(m.maxDrift, math.Abs(s.State.Etot()-m.initial)/math.Abs(m.initial))
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.err != nil:
		b.WriteString(statusFailed.Render("FAILED: "+m.err.Error()) + "\n\n")
	case m.finished:
		b.WriteString(statusDone.Render("DONE") + "\n\n")
	default:
		b.WriteString(statusRunning.Render("RUNNING") + "\n\n")
	}

	st := m.last.State
	var stats strings.Builder
	row := func(label, value string) {
		stats.WriteString(labelStyle.Render(label) + valueStyle.Render(value) + "\n")
	}
	row("Step", fmt.Sprintf("%d / %d", st.Step, m.nsteps))
	row("Temp", fmt.Sprintf("%.4f K", st.Temp))
	row("Ekin", fmt.Sprintf("%.6f", st.Ekin))
	row("Epot", fmt.Sprintf("%.6f", st.Epot))
	row("Etot", fmt.Sprintf("%.6f", st.Etot()))
	row("Drift", fmt.Sprintf("%.3e", m.maxDrift))
	stats.WriteString("\n" + progressBar(st.Step, m.nsteps, 30) + "\n")

	if len(m.history) > 1 {
		etot := make([]float64, len(m.history))
		temp := make([]float64, len(m.history))
		for i, h := range m.history {
			etot[i] = h.Etot()
			temp[i] = h.Temp
		}
		stats.WriteString("\n" + graphStyle.Render(asciigraph.Plot(etot,
			asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("total energy"))) + "\n")
		stats.WriteString("\n" + graphStyle.Render(asciigraph.Plot(temp,
			asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("temperature"))) + "\n")
	}

	canvas := panelStyle.Render(m.project())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, canvas, panelStyle.Render(stats.String())))
	b.WriteString("\n" + helpStyle.Render("q: quit"))
	return b.String()
}

// project draws the x-y projection of the last positions, folded into the box.
func (m Model) project() string {
	grid := make([][]rune, canvasHeight)
	for y := range grid {
		grid[y] = []rune(strings.Repeat(" ", canvasWidth))
	}
	if m.box > 0 {
		for i := range m.last.Rx {
			x := fold(m.last.Rx[i], m.box) / m.box
			y := fold(m.last.Ry[i], m.box) / m.box
			cx := int(x * float64(canvasWidth-1))
			cy := canvasHeight - 1 - int(y*float64(canvasHeight-1))
			if cx >= 0 && cx < canvasWidth && cy >= 0 && cy < canvasHeight {
				grid[cy][cx] = 'o'
			}
		}
	}
	lines := make([]string, len(grid))
	for i, r := range grid {
		lines[i] = string(r)
	}
	return strings.Join(lines, "\n")
}

func fold(v, box float64) float64 {
	v = math.Mod(v, box)
	if v < 0 {
		v += box
	}
	return v
}

func progressBar(step, total, width int) string {
	ratio := 1.0
	if total > 0 {
		ratio = float64(step) / float64(total)
	}
	filled := int(ratio * float64(width))
	if filled > width {
		filled = width
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat("-", width-filled) + fmt.Sprintf("] %3.0f%%", ratio*100)
}
