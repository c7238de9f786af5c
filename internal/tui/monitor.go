// Package tui is the terminal front end of the midiclock monitor command.
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	midiclock "github.com/DatanoiseTV/midiclock-go"
)

const (
	refreshInterval = 50 * time.Millisecond
	tempoStep       = 1.0
	minTempo        = 1.0
)

// Engine is the part of the clock engine the monitor drives.
type Engine interface {
	StartClockSend(bpm float64) error
	StopClockSend()
	SendStatus() midiclock.SendStatus
	DisableClockFollow()
	ClockStatus() midiclock.Status
	SelectedOutput() (int, bool)
}

// Config describes what the monitor controls.
type Config struct {
	// BPM is the initial send tempo.
	BPM float64
	// OutputName and InputName are shown in the status panel.
	OutputName string
	InputName  string
	// Follow enables clock follow on the configured input. Nil disables the
	// follow toggle.
	Follow func() error
}

// Monitor shows send and follow state and maps keys to engine commands.
type Monitor struct {
	app    *tview.Application
	pages  *tview.Pages
	engine Engine
	cfg    Config

	headerBar   *tview.TextView
	statusPanel *tview.Table
	tempoPanel  *tview.TextView
	logPanel    *tview.TextView
	footerBar   *tview.TextView
	helpModal   *tview.Modal

	mu        sync.Mutex
	bpm       float64
	following bool
	lastErr   string

	updateTicker *time.Ticker
	stopUpdate   chan struct{}
	stopOnce     sync.Once
}

// New builds the monitor. Call Run to take over the terminal.
func New(engine Engine, cfg Config) *Monitor {
	if cfg.BPM <= 0 {
		cfg.BPM = 120
	}
	m := &Monitor{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		engine:     engine,
		cfg:        cfg,
		bpm:        cfg.BPM,
		stopUpdate: make(chan struct{}),
	}

	m.setupComponents()
	m.setupLayout()
	m.app.SetInputCapture(m.handleKey)
	return m
}

func (m *Monitor) setupComponents() {
	m.headerBar = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[white:blue:b] midiclock monitor [::-]")

	m.statusPanel = tview.NewTable().
		SetBorders(false).
		SetSelectable(false, false)
	m.statusPanel.SetTitle(" Status ").SetBorder(true)

	m.tempoPanel = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetWrap(false)
	m.tempoPanel.SetTitle(" Tempo ").SetBorder(true)

	m.logPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			m.logPanel.ScrollToEnd()
			m.app.Draw()
		})
	m.logPanel.SetTitle(" Log ").SetBorder(true)

	m.footerBar = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText("[black:white] Space Send [-:-] [black:white] ↑/↓ BPM [-:-] [black:white] F Follow [-:-] [black:white] H Help [-:-] [black:white] Q Quit ")

	m.helpModal = tview.NewModal().
		SetText("midiclock controls\n\n" +
			"Space: start/stop sending clock\n" +
			"↑/↓: adjust send tempo (±1 BPM)\n" +
			"F: toggle following the input clock\n" +
			"H: show/hide this help\n" +
			"Q or Esc: quit").
		AddButtons([]string{"Close"}).
		SetDoneFunc(func(int, string) {
			m.pages.HidePage("help")
		})
}

func (m *Monitor) setupLayout() {
	topRow := tview.NewFlex().
		AddItem(m.statusPanel, 0, 1, false).
		AddItem(m.tempoPanel, 0, 1, false)

	mainContent := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 9, 0, false).
		AddItem(m.logPanel, 0, 1, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(m.headerBar, 1, 0, false).
		AddItem(mainContent, 0, 1, true).
		AddItem(m.footerBar, 1, 0, false)

	m.pages.AddPage("main", layout, true, true)
	m.pages.AddPage("help", m.helpModal, true, false)
	m.app.SetRoot(m.pages, true)
}

func (m *Monitor) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Rune() == 'q' || event.Rune() == 'Q' || event.Key() == tcell.KeyEscape:
		if name, _ := m.pages.GetFrontPage(); name == "help" {
			m.pages.HidePage("help")
			return nil
		}
		m.Stop()
		return nil

	case event.Rune() == 'h' || event.Rune() == 'H':
		if name, _ := m.pages.GetFrontPage(); name == "help" {
			m.pages.HidePage("help")
		} else {
			m.pages.ShowPage("help")
		}
		return nil

	case event.Key() == tcell.KeyUp:
		m.adjustTempo(tempoStep)
		return nil

	case event.Key() == tcell.KeyDown:
		m.adjustTempo(-tempoStep)
		return nil

	case event.Rune() == ' ':
		m.toggleSend()
		return nil

	case event.Rune() == 'f' || event.Rune() == 'F':
		m.toggleFollow()
		return nil
	}
	return event
}

func (m *Monitor) toggleSend() {
	if m.engine.SendStatus().Running {
		m.engine.StopClockSend()
		m.setErr(nil)
		return
	}
	m.mu.Lock()
	bpm := m.bpm
	m.mu.Unlock()
	m.setErr(m.engine.StartClockSend(bpm))
}

// adjustTempo changes the send tempo; a running clock is restarted at the new
// tempo.
func (m *Monitor) adjustTempo(delta float64) {
	m.mu.Lock()
	m.bpm += delta
	if m.bpm < minTempo {
		m.bpm = minTempo
	}
	bpm := m.bpm
	m.mu.Unlock()

	if m.engine.SendStatus().Running {
		m.setErr(m.engine.StartClockSend(bpm))
	}
}

func (m *Monitor) toggleFollow() {
	if m.cfg.Follow == nil {
		m.setErr(fmt.Errorf("no input configured"))
		return
	}

	m.mu.Lock()
	following := m.following
	m.mu.Unlock()

	if following {
		m.engine.DisableClockFollow()
		m.setFollowing(false)
		m.setErr(nil)
		return
	}
	err := m.cfg.Follow()
	m.setFollowing(err == nil)
	m.setErr(err)
}

func (m *Monitor) setFollowing(v bool) {
	m.mu.Lock()
	m.following = v
	m.mu.Unlock()
}

func (m *Monitor) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.lastErr = ""
		return
	}
	m.lastErr = err.Error()
}

func (m *Monitor) startUpdateLoop() {
	m.updateTicker = time.NewTicker(refreshInterval)

	go func() {
		for {
			select {
			case <-m.updateTicker.C:
				m.app.QueueUpdateDraw(m.updateAllPanels)
			case <-m.stopUpdate:
				return
			}
		}
	}()
}

func (m *Monitor) updateAllPanels() {
	m.updateStatusPanel()
	m.updateTempoPanel()
}

func (m *Monitor) updateStatusPanel() {
	send := m.engine.SendStatus()
	follow := m.engine.ClockStatus()

	m.mu.Lock()
	following := m.following
	lastErr := m.lastErr
	m.mu.Unlock()

	m.statusPanel.Clear()
	row := 0
	addRow := func(label, value string) {
		m.statusPanel.SetCell(row, 0, tview.NewTableCell(label).SetTextColor(tcell.ColorYellow))
		m.statusPanel.SetCell(row, 1, tview.NewTableCell(value))
		row++
	}

	output := "[darkgray]none"
	if index, ok := m.engine.SelectedOutput(); ok {
		output = fmt.Sprintf("[white]%d %s", index, m.cfg.OutputName)
	}
	addRow("Output:", output)

	sendState := "[red]Stopped"
	if send.Running {
		sendState = "[green]Sending"
	}
	addRow("Send:", sendState)

	followState := "[darkgray]Off"
	if following {
		followState = "[red]Stopped"
		if follow.Running {
			followState = "[green]Running"
		}
	}
	addRow("Follow:", followState)

	if m.cfg.InputName != "" {
		addRow("Input:", "[white]"+m.cfg.InputName)
	}
	if lastErr != "" {
		addRow("Error:", "[red]"+tview.Escape(lastErr))
	}
}

func (m *Monitor) updateTempoPanel() {
	send := m.engine.SendStatus()
	follow := m.engine.ClockStatus()

	m.mu.Lock()
	bpm := m.bpm
	m.mu.Unlock()

	var b strings.Builder
	b.WriteString("\n[green]Send Tempo[white]\n")
	fmt.Fprintf(&b, "[white::b]%.1f[white::-] BPM", bpm)
	if !send.Running {
		b.WriteString(" [darkgray](idle)[white]")
	}
	b.WriteString("\n\n")

	b.WriteString("[yellow]Followed Tempo[white]\n")
	if follow.BPM != nil {
		fmt.Fprintf(&b, "[white::b]%.1f[white::-] BPM", *follow.BPM)
	} else {
		b.WriteString("[darkgray]No estimate")
	}

	m.tempoPanel.SetText(b.String())
}

// LogWriter returns an io.Writer that appends to the log panel.
func (m *Monitor) LogWriter() *LogWriter {
	return &LogWriter{monitor: m}
}

// LogWriter feeds log lines into the monitor's log panel.
type LogWriter struct {
	monitor *Monitor
}

func (w *LogWriter) Write(p []byte) (int, error) {
	timestamp := time.Now().Format("15:04:05")
	message := fmt.Sprintf("[darkgray]%s[white] %s", timestamp, tview.Escape(string(p)))
	message = strings.TrimRight(message, "\n")

	if w.monitor.logPanel != nil {
		fmt.Fprintln(w.monitor.logPanel, message)
	}
	return len(p), nil
}

// Run blocks until the user quits.
func (m *Monitor) Run() error {
	m.startUpdateLoop()
	return m.app.Run()
}

// Stop shuts the UI down. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		if m.updateTicker != nil {
			m.updateTicker.Stop()
		}
		close(m.stopUpdate)
		m.app.Stop()
	})
}
