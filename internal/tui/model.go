// Package tui is the interactive terminal client. It shows the login screen
// or the control screen depending on the session mode and renders the control
// screen purely from the last published status projection.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/retribution/retctl/internal/core"
	"github.com/retribution/retctl/internal/events"
	"github.com/retribution/retctl/internal/models"
	"github.com/retribution/retctl/internal/pathutil"
	"github.com/retribution/retctl/internal/session"
)

// eventMsg wraps one event from the engine bus.
type eventMsg struct {
	event events.Event
}

// busClosedMsg is sent once the bus subscription ends.
type busClosedMsg struct{}

type startedMsg struct {
	state session.State
}

type loginDoneMsg struct {
	err error
}

type actionDoneMsg struct {
	op  string
	err error
}

type pollTickMsg struct{}

// Model is the bubbletea model for the whole application.
type Model struct {
	engine   *core.Engine
	ctx      context.Context
	bus      <-chan events.Event
	interval time.Duration

	mode  session.State
	title string
	view  models.ControlView
	busy  bool

	alert         string
	alertSeverity events.Severity
	lastLog       string
	transfer      *events.ProgressEvent

	username   textinput.Model
	password   textinput.Model
	focus      int
	uploadPath textinput.Model
	prompting  bool

	spinner spinner.Model
	width   int
}

// New builds the model. The caller keeps ownership of engine.
func New(ctx context.Context, engine *core.Engine) Model {
	user := textinput.New()
	user.Placeholder = "username"
	user.Prompt = "Username: "
	user.CharLimit = 128
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.Prompt = "Password: "
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '•'
	pass.CharLimit = 128

	path := textinput.New()
	path.Placeholder = "path/to/retribution_nextturn.miz"
	path.Prompt = "Upload: "

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = infoStyle

	return Model{
		engine:     engine,
		ctx:        ctx,
		bus:        engine.Events().SubscribeAll(),
		interval:   engine.Config().PollInterval,
		mode:       session.Validating,
		username:   user,
		password:   pass,
		uploadPath: path,
		spinner:    spin,
	}
}

// Init starts the session and the event bridge.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.start(),
		m.spinner.Tick,
		m.schedulePoll(),
	)
}

func (m Model) waitForEvent() tea.Cmd {
	bus := m.bus
	return func() tea.Msg {
		e, ok := <-bus
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

func (m Model) start() tea.Cmd {
	engine, ctx := m.engine, m.ctx
	return func() tea.Msg {
		return startedMsg{state: engine.Start(ctx)}
	}
}

func (m Model) schedulePoll() tea.Cmd {
	if m.interval <= 0 {
		return nil
	}
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return pollTickMsg{} })
}

func (m Model) action(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		prev := m.mode
		m.applyEvent(msg.event)
		if prev != m.mode {
			return m, tea.Batch(m.waitForEvent(), m.focusLogin())
		}
		return m, m.waitForEvent()

	case busClosedMsg:
		return m, nil

	case startedMsg:
		m.mode = msg.state
		return m, m.focusLogin()

	case loginDoneMsg:
		if msg.err != nil {
			m.password.SetValue("")
			m.focus = 1
			return m, m.focusLogin()
		}
		m.username.SetValue("")
		m.password.SetValue("")
		return m, nil

	case actionDoneMsg:
		if msg.err != nil && m.alert == "" {
			m.lastLog = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
		}
		return m, nil

	case pollTickMsg:
		var cmd tea.Cmd
		if m.mode == session.Control {
			sync := m.engine.Status()
			cmd = m.action("refresh", func(ctx context.Context) error {
				sync.Refresh(ctx)
				return nil
			})
		}
		return m, tea.Batch(cmd, m.schedulePoll())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// applyEvent folds a bus event into the model.
func (m *Model) applyEvent(e events.Event) {
	switch ev := e.(type) {
	case *events.ModeChangedEvent:
		m.mode = modeFromString(ev.Mode)
		m.title = ev.Title
		if m.mode != session.Control {
			m.prompting = false
			m.transfer = nil
		}
	case *events.StatusEvent:
		m.view = ev.View
	case *events.BusyEvent:
		m.busy = ev.Busy
	case *events.AlertEvent:
		m.alert = ev.Message
		m.alertSeverity = ev.Severity
	case *events.ProgressEvent:
		m.transfer = ev
	case *events.LogEvent:
		m.lastLog = ev.Message
	}
}

func modeFromString(s string) session.State {
	switch s {
	case session.Control.String():
		return session.Control
	case session.Validating.String():
		return session.Validating
	default:
		return session.Unauthenticated
	}
}

func (m *Model) focusLogin() tea.Cmd {
	if m.mode != session.Unauthenticated {
		return nil
	}
	if m.focus == 0 {
		m.password.Blur()
		return m.username.Focus()
	}
	m.username.Blur()
	return m.password.Focus()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Any key dismisses the current alert
	if m.alert != "" {
		m.alert = ""
		if msg.String() == "enter" || msg.String() == "esc" {
			return m, nil
		}
	}

	switch m.mode {
	case session.Unauthenticated:
		return m.handleLoginKey(msg)
	case session.Control:
		if m.prompting {
			return m.handlePromptKey(msg)
		}
		return m.handleControlKey(msg)
	}
	if msg.String() == "q" || msg.String() == "esc" {
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		m.focus = 1 - m.focus
		return m, m.focusLogin()
	case "enter":
		if m.focus == 0 {
			m.focus = 1
			return m, m.focusLogin()
		}
		user, pass := m.username.Value(), m.password.Value()
		if user == "" {
			m.focus = 0
			return m, m.focusLogin()
		}
		machine, ctx := m.engine.Session(), m.ctx
		return m, func() tea.Msg {
			return loginDoneMsg{err: machine.Login(ctx, user, pass)}
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.username, cmd = m.username.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m Model) handleControlKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	commands := m.engine.Commands()

	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case "p":
		return m, m.action("power", commands.TogglePower)
	case "r":
		sync := m.engine.Status()
		return m, m.action("refresh", func(ctx context.Context) error {
			_, err := sync.Fetch(ctx)
			return err
		})
	case "u":
		if !m.view.UploadEnabled {
			return m, nil
		}
		m.prompting = true
		m.uploadPath.SetValue("")
		return m, m.uploadPath.Focus()
	case "d":
		dir := m.engine.Config().DownloadDir
		bus := m.engine.Events()
		return m, m.action("download", func(ctx context.Context) error {
			if resolved, err := pathutil.Resolve(dir); err == nil {
				dir = resolved
			}
			result, err := commands.Download(ctx, dir)
			if err == nil && !result.Missing {
				bus.PublishAlert(events.SeverityInfo, "download", "Saved "+result.Path)
			}
			return err
		})
	case "L":
		machine := m.engine.Session()
		return m, m.action("logout", machine.Logout)
	}
	return m, nil
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.prompting = false
		m.uploadPath.Blur()
		return m, nil
	case "enter":
		path := strings.TrimSpace(m.uploadPath.Value())
		m.prompting = false
		m.uploadPath.Blur()
		if path == "" {
			return m, nil
		}
		commands := m.engine.Commands()
		return m, m.action("upload", func(ctx context.Context) error {
			resolved, err := pathutil.Resolve(path)
			if err != nil {
				resolved = path
			}
			return commands.Upload(ctx, resolved)
		})
	}

	var cmd tea.Cmd
	m.uploadPath, cmd = m.uploadPath.Update(msg)
	return m, cmd
}

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder

	title := m.title
	if title == "" {
		title = "retctl"
	}
	b.WriteString(titleStyle.Render(title))
	if m.busy {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n\n")

	switch m.mode {
	case session.Validating:
		b.WriteString(m.spinner.View() + " Checking credentials with " + m.engine.Config().ServerURL + "\n")
	case session.Unauthenticated:
		b.WriteString(m.loginView())
	case session.Control:
		b.WriteString(m.controlView())
	}

	if m.alert != "" {
		style := errorStyle
		if m.alertSeverity == events.SeverityInfo {
			style = infoStyle
		}
		b.WriteString("\n" + panelStyle.Render(style.Render(m.alert)) + "\n")
	} else if m.lastLog != "" {
		b.WriteString("\n" + helpStyle.Render(m.lastLog) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.help()) + "\n")
	return b.String()
}

func (m Model) loginView() string {
	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.username.View(),
		m.password.View(),
	)) + "\n"
}

func (m Model) controlView() string {
	v := m.view
	if !v.Known {
		return panelStyle.Render("Waiting for server status...") + "\n"
	}

	status := stoppedStyle.Render(v.Status)
	power := "off"
	if v.PowerOn {
		status = runningStyle.Render(v.Status)
		power = "on"
	}

	upload := disabledStyle.Render("[u] Upload mission")
	if v.UploadEnabled {
		upload = enabledStyle.Render("[u] Upload mission")
	}

	rows := []string{
		labelStyle.Render("Status") + status,
		labelStyle.Render("Uptime") + v.Uptime,
		labelStyle.Render("Power") + fmt.Sprintf("%s  %s", power, enabledStyle.Render("[p] "+v.PowerTooltip)),
		labelStyle.Render("Upload") + upload,
		labelStyle.Render("Accepts") + helpStyle.Render(v.UploadTooltip),
	}
	if m.transfer != nil && m.transfer.Progress < 1 {
		rows = append(rows, labelStyle.Render(m.transfer.Stage)+
			fmt.Sprintf("%s %3.0f%%", m.transfer.Name, m.transfer.Progress*100))
	}

	out := panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n"
	if m.prompting {
		out += m.uploadPath.View() + "\n"
	}
	return out
}

func (m Model) help() string {
	switch m.mode {
	case session.Unauthenticated:
		return "tab switch field • enter log in • esc quit"
	case session.Control:
		if m.prompting {
			return "enter upload • esc cancel"
		}
		return "p power • u upload • d download • r refresh • L logout • q quit"
	}
	return "q quit"
}
