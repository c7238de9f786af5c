package tui

import (
	"sync"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	midiclock "github.com/DatanoiseTV/midiclock-go"
)

type fakeEngine struct {
	mu       sync.Mutex
	sendBPM  float64
	starts   []float64
	stops    int
	disables int
	status   midiclock.Status
	selected int
	startErr error
}

func (f *fakeEngine) StartClockSend(bpm float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, bpm)
	if f.startErr != nil {
		return f.startErr
	}
	f.sendBPM = bpm
	return nil
}

func (f *fakeEngine) StopClockSend() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.sendBPM = 0
}

func (f *fakeEngine) SendStatus() midiclock.SendStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return midiclock.SendStatus{Running: f.sendBPM > 0, BPM: f.sendBPM}
}

func (f *fakeEngine) DisableClockFollow() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disables++
	f.status = midiclock.Status{}
}

func (f *fakeEngine) ClockStatus() midiclock.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeEngine) SelectedOutput() (int, bool) {
	return f.selected, f.selected >= 0
}

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestToggleSend(t *testing.T) {
	eng := &fakeEngine{}
	m := New(eng, Config{BPM: 128})

	assert.Nil(t, m.handleKey(runeKey(' ')))
	assert.Equal(t, []float64{128}, eng.starts)
	assert.True(t, eng.SendStatus().Running)

	assert.Nil(t, m.handleKey(runeKey(' ')))
	assert.Equal(t, 1, eng.stops)
	assert.False(t, eng.SendStatus().Running)
}

func TestAdjustTempo(t *testing.T) {
	eng := &fakeEngine{}
	m := New(eng, Config{BPM: 2})

	m.handleKey(key(tcell.KeyDown))
	m.handleKey(key(tcell.KeyDown))
	assert.Empty(t, eng.starts, "idle clock is not started by tempo keys")

	m.handleKey(runeKey(' '))
	m.handleKey(key(tcell.KeyUp))
	m.handleKey(key(tcell.KeyUp))

	assert.Equal(t, []float64{1, 2, 3}, eng.starts)
}

func TestToggleFollow(t *testing.T) {
	eng := &fakeEngine{}
	calls := 0
	m := New(eng, Config{Follow: func() error {
		calls++
		return nil
	}})

	m.handleKey(runeKey('f'))
	assert.Equal(t, 1, calls)

	eng.status = midiclock.Status{Running: true}
	m.updateAllPanels()
	assert.Contains(t, m.statusPanel.GetCell(2, 1).Text, "Running")

	m.handleKey(runeKey('F'))
	assert.Equal(t, 1, eng.disables)
	m.updateAllPanels()
	assert.Contains(t, m.statusPanel.GetCell(2, 1).Text, "Off")
}

func TestToggleFollowWithoutInput(t *testing.T) {
	eng := &fakeEngine{selected: -1}
	m := New(eng, Config{})

	m.handleKey(runeKey('f'))
	m.updateAllPanels()

	assert.Contains(t, m.statusPanel.GetCell(0, 1).Text, "none")
	assert.Contains(t, m.statusPanel.GetCell(3, 1).Text, "no input configured")
}

func TestStartErrorShown(t *testing.T) {
	eng := &fakeEngine{selected: -1, startErr: midiclock.ErrNoOutputSelected}
	m := New(eng, Config{})

	m.handleKey(runeKey(' '))
	m.updateAllPanels()

	assert.Contains(t, m.statusPanel.GetCell(3, 1).Text, "no midi output selected")
}

func TestTempoPanel(t *testing.T) {
	bpm := 97.5
	eng := &fakeEngine{status: midiclock.Status{Running: true, BPM: &bpm}}
	m := New(eng, Config{BPM: 140})

	m.updateAllPanels()
	text := m.tempoPanel.GetText(true)
	assert.Contains(t, text, "140.0 BPM")
	assert.Contains(t, text, "(idle)")
	assert.Contains(t, text, "97.5 BPM")
}

func TestUnhandledKeyPassesThrough(t *testing.T) {
	m := New(&fakeEngine{}, Config{})
	ev := runeKey('x')
	assert.Same(t, ev, m.handleKey(ev))
}

func TestLogWriter(t *testing.T) {
	m := New(&fakeEngine{}, Config{})
	w := m.LogWriter()

	line := "level=info msg=\"Opened MIDI output\" index=0\n"
	n, err := w.Write([]byte(line))
	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	assert.Contains(t, m.logPanel.GetText(true), `msg="Opened MIDI output" index=0`)
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(&fakeEngine{}, Config{})
	m.Stop()
	m.Stop()
	assert.Nil(t, m.handleKey(runeKey('q')))
}
