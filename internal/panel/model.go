package panel

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/config"
	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/server"
)

// RefreshInterval is how often the log pane and status are refreshed.
const RefreshInterval = 200 * time.Millisecond

// Levels offered by the log level selector.
var Levels = []string{"error", "warning", "debug"}

// Controller is the part of server.Controller the panel drives.
type Controller interface {
	Enable(port int) error
	Disable()
	Exit()
	Status() server.Status
	Subscribe() (<-chan server.Event, func())
}

type tickMsg time.Time

type eventMsg server.Event

// Model is the bubbletea model of the control panel.
type Model struct {
	ctrl   Controller
	tail   *logging.Tail
	events <-chan server.Event
	unsub  func()

	port     textinput.Model
	levelIdx int
	setLevel func(string) error

	status  server.Status
	lines   []string
	lastSeq uint64
	err     string

	Width  int
	Height int

	keys keyMap
	help help.Model
}

// Options configures New.
type Options struct {
	// Port pre-fills the port field.
	Port int
	// Level selects the initial log level. Names outside Levels select
	// debug.
	Level string
	// Tail supplies the log pane. Nil hides it.
	Tail *logging.Tail
	// SetLevel applies a level change. Nil means logging.SetLevel.
	SetLevel func(string) error
}

// New creates the panel model and subscribes to controller events. Call
// Close when the program has finished.
func New(ctrl Controller, opts Options) Model {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 5
	in.Width = 6
	in.Placeholder = strconv.Itoa(config.DefaultPort)
	if opts.Port != 0 {
		in.SetValue(strconv.Itoa(opts.Port))
	}
	in.Focus()

	setLevel := opts.SetLevel
	if setLevel == nil {
		setLevel = logging.SetLevel
	}

	levelIdx := len(Levels) - 1
	if want, err := logging.ParseLevel(opts.Level); err == nil {
		for i, l := range Levels {
			if lv, _ := logging.ParseLevel(l); lv == want {
				levelIdx = i
			}
		}
	}

	events, unsub := ctrl.Subscribe()
	width, height := TerminalSize()
	return Model{
		ctrl:     ctrl,
		tail:     opts.Tail,
		events:   events,
		unsub:    unsub,
		port:     in,
		levelIdx: levelIdx,
		setLevel: setLevel,
		status:   ctrl.Status(),
		Width:    width,
		Height:   height,
		keys:     defaultKeys(),
		help:     help.New(),
	}
}

// Close releases the controller subscription.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

// Init starts the refresh timer and the event listener.
func (m Model) Init() tea.Cmd {
	_ = m.setLevel(Levels[m.levelIdx])
	return tea.Batch(tick(), waitForEvent(m.events), textinput.Blink)
}

func tick() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitForEvent(ch <-chan server.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// Update handles key presses, controller events and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = clampWidth(msg.Width)
		m.Height = max(msg.Height, MinTerminalHeight)
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case eventMsg:
		m.status = msg.Status
		return m, waitForEvent(m.events)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.ctrl.Exit()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			m.toggle()
			return m, nil
		case key.Matches(msg, m.keys.Level):
			m.cycleLevel()
			return m, nil
		}
		if !acceptsKey(msg) {
			return m, nil
		}
		var cmd tea.Cmd
		m.port, cmd = m.port.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.port, cmd = m.port.Update(msg)
	return m, cmd
}

// acceptsKey lets digits and editing keys through to the port field.
func acceptsKey(msg tea.KeyMsg) bool {
	if msg.Type != tea.KeyRunes {
		return true
	}
	for _, r := range msg.Runes {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func (m *Model) refresh() {
	m.status = m.ctrl.Status()
	if m.tail == nil {
		return
	}
	if seq := m.tail.Seq(); seq != m.lastSeq {
		m.lastSeq = seq
		m.lines = m.tail.Lines()
	}
}

func (m *Model) toggle() {
	m.err = ""
	if m.status.State != server.StateIdle {
		m.ctrl.Disable()
		m.status = m.ctrl.Status()
		return
	}

	text := m.port.Value()
	if text == "" {
		text = m.port.Placeholder
	}
	port, err := strconv.Atoi(text)
	if err != nil {
		m.err = fmt.Sprintf("invalid port %q", text)
		return
	}
	if err := config.ValidatePort(port); err != nil {
		m.err = err.Error()
		return
	}
	if err := m.ctrl.Enable(port); err != nil {
		m.err = err.Error()
		return
	}
	m.status = m.ctrl.Status()
}

func (m *Model) cycleLevel() {
	next := (m.levelIdx + 1) % len(Levels)
	if err := m.setLevel(Levels[next]); err != nil {
		m.err = err.Error()
		return
	}
	m.levelIdx = next
	logging.Info("Log level changed", zap.String("level", Levels[next]))
}

// Level returns the selected log level.
func (m Model) Level() string {
	return Levels[m.levelIdx]
}

// View renders the panel.
func (m Model) View() string {
	width := clampWidth(m.Width)

	var rows []string
	rows = append(rows, titleStyle.Render("ARRAY ACQUISITION SERVER"))

	state := m.status.State.String()
	rows = append(rows, field("State", stateStyle(state).Render(state)))

	if m.status.State == server.StateIdle {
		rows = append(rows, field("Port", m.port.View()))
	} else {
		rows = append(rows, field("Port", strconv.Itoa(m.status.Port)))
	}
	if m.status.Remote != "" {
		rows = append(rows, field("Client", m.status.Remote))
	}
	st := m.status.Stats
	rows = append(rows, field("Sessions", fmt.Sprintf("%d  requests %d  errors %d", st.Sessions, st.Requests, st.ErrorResponses)))
	rows = append(rows, field("Log level", m.renderLevels()))
	if m.status.LastError != "" {
		rows = append(rows, field("Last error", errorStyle.Render(m.status.LastError)))
	}
	if m.err != "" {
		rows = append(rows, errorStyle.Render(m.err))
	}

	top := boxStyle(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	helpView := m.help.View(m.keys)

	parts := []string{top}
	if m.tail != nil {
		avail := m.Height - lipgloss.Height(top) - lipgloss.Height(helpView) - 2
		parts = append(parts, m.renderLog(width, avail))
	}
	parts = append(parts, helpView)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func field(k, v string) string {
	return keyStyle.Render(k+":") + " " + valueStyle.Render(v)
}

func (m Model) renderLevels() string {
	out := make([]string, len(Levels))
	for i, l := range Levels {
		if i == m.levelIdx {
			out[i] = selectedLevelStyle.Render("[" + l + "]")
		} else {
			out[i] = " " + l + " "
		}
	}
	return strings.Join(out, " ")
}

func (m Model) renderLog(width, height int) string {
	if height < 1 {
		return ""
	}
	lines := m.lines
	if len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	cut := make([]string, len(lines))
	for i, l := range lines {
		if len(l) > width-2 {
			l = l[:width-2]
		}
		cut[i] = logStyle.Render(l)
	}
	return strings.Join(cut, "\n")
}

// Run shows the panel until the operator quits. It blocks.
func Run(ctrl Controller, opts Options) error {
	m := New(ctrl, opts)
	defer m.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
