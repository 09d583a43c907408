package viz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/sirsim/internal/epidemic"
	"github.com/san-kum/sirsim/internal/integrators"
)

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyStop  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")}
	keyReset = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}
	keyQuit  = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
)

func solveTextbook(ctx context.Context) (*epidemic.Result, error) {
	return epidemic.New(integrators.NewRKF45()).Solve(ctx,
		epidemic.Problem{S0: 990, I0: 10, Beta: 0.3, Gamma: 0.1, TMax: 160})
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

// solved starts a solve and delivers its result.
func solved(t *testing.T, m Model) Model {
	t.Helper()
	m, cmd := update(t, m, keySpace)
	require.Equal(t, PhaseSolving, m.Phase())
	require.NotNil(t, cmd)
	m, cmd = update(t, m, cmd())
	require.NotNil(t, cmd, "playback should schedule a tick")
	return m
}

func TestReplayStartsIdle(t *testing.T) {
	m := NewModel("sir", solveTextbook, 30)
	assert.Nil(t, m.Init())
	assert.Equal(t, PhaseIdle, m.Phase())
	assert.Contains(t, m.View(), "READY")
}

func TestReplayPlaysToTheEnd(t *testing.T) {
	m := solved(t, NewModel("sir", solveTextbook, 30))
	require.Equal(t, PhasePlaying, m.Phase())
	require.NotNil(t, m.Result())

	last := m.Result().Trajectory.Len() - 1
	prev := m.Frame()
	for i := 0; i < 10*replayFrames && m.Phase() == PhasePlaying; i++ {
		var cmd tea.Cmd
		m, cmd = update(t, m, TickMsg(time.Now()))
		assert.Greater(t, m.Frame(), prev)
		prev = m.Frame()
		if m.Phase() == PhaseDone {
			assert.Nil(t, cmd)
		}
	}

	assert.Equal(t, PhaseDone, m.Phase())
	assert.Equal(t, last, m.Frame())
	assert.Contains(t, m.View(), "DONE")
}

func TestReplayPauseResume(t *testing.T) {
	m := solved(t, NewModel("sir", solveTextbook, 30))
	m, _ = update(t, m, TickMsg(time.Now()))
	frame := m.Frame()

	m, cmd := update(t, m, keySpace)
	assert.Equal(t, PhasePaused, m.Phase())
	assert.Nil(t, cmd)

	m, cmd = update(t, m, TickMsg(time.Now()))
	assert.Equal(t, frame, m.Frame(), "paused replay must not advance")
	assert.Nil(t, cmd)

	m, cmd = update(t, m, keySpace)
	assert.Equal(t, PhasePlaying, m.Phase())
	assert.NotNil(t, cmd)
}

func TestReplayRestart(t *testing.T) {
	m := solved(t, NewModel("sir", solveTextbook, 30))
	for i := 0; i < 5; i++ {
		m, _ = update(t, m, TickMsg(time.Now()))
	}
	require.Greater(t, m.Frame(), 0)

	m, _ = update(t, m, keyStop)
	assert.Equal(t, PhaseStopped, m.Phase())

	m, cmd := update(t, m, keyReset)
	assert.Equal(t, 0, m.Frame())
	assert.Equal(t, PhasePlaying, m.Phase())
	assert.NotNil(t, cmd)
}

func TestReplayStopAbandonsSolve(t *testing.T) {
	started := make(chan struct{})
	blocking := func(ctx context.Context) (*epidemic.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m := NewModel("sir", blocking, 30)
	m, cmd := update(t, m, keySpace)
	require.Equal(t, PhaseSolving, m.Phase())

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- cmd() }()
	<-started

	m, _ = update(t, m, keyStop)
	assert.Equal(t, PhaseStopped, m.Phase())

	select {
	case msg := <-msgs:
		m, cmd = update(t, m, msg)
		assert.Nil(t, cmd)
		assert.Equal(t, PhaseStopped, m.Phase(), "a stale result must be ignored")
		assert.Nil(t, m.Err())
	case <-time.After(5 * time.Second):
		t.Fatal("solve did not observe cancellation")
	}
}

func TestReplaySolveFailure(t *testing.T) {
	boom := errors.New("boom")
	m := NewModel("sir", func(ctx context.Context) (*epidemic.Result, error) { return nil, boom }, 30)

	m, cmd := update(t, m, keySpace)
	m, cmd = update(t, m, cmd())
	assert.Nil(t, cmd)
	assert.Equal(t, PhaseFailed, m.Phase())
	assert.ErrorIs(t, m.Err(), boom)
	assert.Contains(t, m.View(), "boom")
}

func TestReplayQuit(t *testing.T) {
	m := NewModel("sir", solveTextbook, 30)
	_, cmd := update(t, m, keyQuit)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestReplayViewShowsState(t *testing.T) {
	m := solved(t, NewModel("textbook", solveTextbook, 30))
	view := m.View()

	assert.True(t, strings.Contains(view, "TEXTBOOK"))
	assert.Contains(t, view, "PLAYING")
	assert.Contains(t, view, "Peak")
}

func TestDownsample(t *testing.T) {
	v := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, v, Downsample(v, 20))
	assert.Equal(t, []float64{0, 3, 6, 9}, Downsample(v, 4))
	assert.Equal(t, v, Downsample(v, 0))
}

func TestPlotCompartments(t *testing.T) {
	res, err := solveTextbook(context.Background())
	require.NoError(t, err)

	assert.Empty(t, PlotCompartments(nil, -1, 40, 8, ""))
	assert.NotEmpty(t, PlotCompartments(res.Trajectory, -1, 40, 8, "sir"))
	assert.NotEmpty(t, PlotCompartments(res.Trajectory, 0, 40, 8, "first frame"))
	assert.NotEmpty(t, PlotSeries(res.Trajectory, 1, 40, 8, "infected"))
}
