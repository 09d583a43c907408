package viz

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/physics"
)

const (
	defaultWidth  = 80
	defaultHeight = 16
	replayFrames  = 240
)

// SolveFunc runs one solve. It must return promptly once ctx is cancelled.
type SolveFunc func(ctx context.Context) (*epidemic.Result, error)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSolving
	PhasePlaying
	PhasePaused
	PhaseDone
	PhaseStopped
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseSolving:
		return "SOLVING"
	case PhasePlaying:
		return "PLAYING"
	case PhasePaused:
		return "PAUSED"
	case PhaseDone:
		return "DONE"
	case PhaseStopped:
		return "STOPPED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "READY"
	}
}

type TickMsg time.Time

// solvedMsg carries a finished solve. gen ties it to the start that issued
// it; results from a stopped or superseded solve are dropped.
type solvedMsg struct {
	gen int
	res *epidemic.Result
	err error
}

// Model holds all UI state. Nothing lives in package variables.
type Model struct {
	title  string
	solve  SolveFunc
	fps    int
	phase  Phase
	gen    int
	cancel context.CancelFunc

	result *epidemic.Result
	err    error
	frame  int
	stride int

	width, height int
}

func NewModel(title string, solve SolveFunc, fps int) Model {
	if fps <= 0 {
		fps = 30
	}
	return Model{
		title:  title,
		solve:  solve,
		fps:    fps,
		width:  defaultWidth,
		height: defaultHeight,
	}
}

func (m Model) Phase() Phase { return m.phase }

func (m Model) Frame() int { return m.frame }

func (m Model) Result() *epidemic.Result { return m.result }

func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.fps), func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Update handles keys, solve completion and animation ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.abandon()
			return m, tea.Quit
		case " ":
			switch m.phase {
			case PhaseIdle, PhaseDone, PhaseStopped, PhaseFailed:
				return m.start()
			case PhasePlaying:
				m.phase = PhasePaused
			case PhasePaused:
				m.phase = PhasePlaying
				return m, m.tick()
			}
		case "s":
			m.stop()
		case "r":
			if m.result == nil {
				return m.start()
			}
			m.frame = 0
			if m.phase != PhasePlaying {
				m.phase = PhasePlaying
				return m, m.tick()
			}
		}

	case solvedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.cancel = nil
		m.err = msg.err
		if msg.res == nil || msg.res.Trajectory.Len() == 0 {
			m.phase = PhaseFailed
			return m, nil
		}
		m.result = msg.res
		m.frame = 0
		m.stride = max(1, msg.res.Trajectory.Len()/replayFrames)
		m.phase = PhasePlaying
		return m, m.tick()

	case TickMsg:
		if m.phase != PhasePlaying || m.result == nil {
			return m, nil
		}
		last := m.result.Trajectory.Len() - 1
		m.frame += m.stride
		if m.frame >= last {
			m.frame = last
			m.phase = PhaseDone
			return m, nil
		}
		return m, m.tick()

	case tea.WindowSizeMsg:
		m.width = max(20, msg.Width-30)
		m.height = max(5, msg.Height-12)
	}
	return m, nil
}

// start launches a solve on the Bubble Tea command goroutine.
func (m Model) start() (tea.Model, tea.Cmd) {
	m.abandon()
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.phase = PhaseSolving
	m.result, m.err, m.frame = nil, nil, 0

	gen, solve := m.gen, m.solve
	return m, func() tea.Msg {
		res, err := solve(ctx)
		return solvedMsg{gen: gen, res: res, err: err}
	}
}

// stop abandons a running solve or halts the replay where it is.
func (m *Model) stop() {
	switch m.phase {
	case PhaseSolving, PhasePlaying, PhasePaused:
		m.abandon()
		m.phase = PhaseStopped
	}
}

func (m *Model) abandon() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
		m.gen++
	}
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if m.result != nil {
		tr := m.result.Trajectory
		s.WriteString(PlotCompartments(tr, m.frame, m.width, m.height, "") + "\n")
		s.WriteString(Legend() + "\n\n")

		t, y := tr.Times[m.frame], tr.States[m.frame]
		end, _ := tr.Last()
		stats := []string{
			MetricLabel.Render("Time") + MetricValue.Render(fmt.Sprintf("%.2f", t)),
			MetricLabel.Render("S") + MetricValue.Render(fmt.Sprintf("%.2f", y[physics.Susceptible])),
			MetricLabel.Render("I") + MetricValue.Render(fmt.Sprintf("%.2f", y[physics.Infected])),
			MetricLabel.Render("R") + MetricValue.Render(fmt.Sprintf("%.2f", y[physics.Recovered])),
			MetricLabel.Render("Peak") + MetricValue.Render(fmt.Sprintf("%.2f at t=%.1f", m.result.Summary.PeakInfected, m.result.Summary.PeakTime)),
			MetricLabel.Render("Progress") + ProgressBar(progress(t, end), 24),
		}
		s.WriteString(panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, stats...)) + "\n")
	}

	if m.err != nil {
		s.WriteString(StatusError.Render("error: "+m.err.Error()) + "\n")
	}

	s.WriteString(KeyHint.Render("\nSPACE:Start/Pause  S:Stop  R:Restart  Q:Quit"))
	return s.String()
}

func (m Model) status() string {
	label := m.phase.String()
	switch m.phase {
	case PhasePlaying, PhaseSolving:
		return StatusRunning.Render(label)
	case PhaseFailed:
		return StatusError.Render(label)
	default:
		return StatusPaused.Render(label)
	}
}

func progress(t, end float64) float64 {
	if end <= 0 {
		return 1
	}
	return t / end
}
