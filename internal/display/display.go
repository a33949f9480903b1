// Package display provides the terminal UI using Bubble Tea.
//
// The [UI] renders the avatar panel, the session status line, the mic
// hint and an optional history panel. Keys drive the session: space
// toggles the microphone, t opens a prompt for a typed turn, h shows or
// hides history, q quits.
package display

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/session"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	barBg = lipgloss.NewStyle().
		Background(lipgloss.Color("#27272a")).
		Foreground(lipgloss.Color("#a1a1aa"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a1a1aa"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fde68a"))

	sepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#52525b"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// BannerStyle is the muted slate used for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	chatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	recordingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5")).
			Bold(true)

	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#d4d4d8"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#52525b")).
			Padding(0, 1)
)

// Panel texts.
const (
	historyLoading = "Loading history..."
	historyEmpty   = "No history found."
)

// Controls is the part of the session the UI drives.
type Controls interface {
	ToggleMic()
	SubmitText(text string)
}

// Placement is read on every tick to show where the avatar is anchored.
type Placement interface {
	Anchor() mgl32.Vec3
	Immersive() bool
}

// ── UI ───────────────────────────────────────────────────────────

// Option configures the UI.
type Option func(*UI)

// WithHistory enables the history panel backed by feed.
func WithHistory(feed domain.HistoryFeed, limit int) Option {
	return func(u *UI) {
		u.feed = feed
		u.historyLimit = limit
	}
}

// WithPlacement shows the anchor of p in the avatar panel.
func WithPlacement(p Placement) Option {
	return func(u *UI) { u.placement = p }
}

// UI manages the terminal through Bubble Tea. Call [NewUI] then
// [UI.Run] (blocking).
type UI struct {
	controls     Controls
	status       <-chan session.Status
	feed         domain.HistoryFeed
	historyLimit int
	placement    Placement
	log          *logger.Logger
}

// NewUI creates the display. status is a subscription from the session
// controller. Call Run() to start.
func NewUI(controls Controls, status <-chan session.Status, log *logger.Logger, opts ...Option) *UI {
	u := &UI{
		controls:     controls,
		status:       status,
		historyLimit: 20,
		log:          log,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Run starts the Bubble Tea event loop. Blocks until quit or ctx ends.
func (u *UI) Run(ctx context.Context) error {
	m := newModel(u.controls, u.status, u.placement, u.log)

	if u.feed != nil {
		snaps, errs, err := u.feed.Subscribe(ctx, u.historyLimit)
		if err != nil {
			u.log.Error("display: history unavailable: %v", err)
		} else {
			m.history = historyState{enabled: true, loading: true, snaps: snaps, errs: errs}
		}
	}

	_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ── Bubble Tea model ─────────────────────────────────────────────

type historyState struct {
	enabled bool
	visible bool
	loading bool
	items   []domain.Interaction
	snaps   <-chan []domain.Interaction
	errs    <-chan error
}

type model struct {
	controls  Controls
	statusCh  <-chan session.Status
	placement Placement
	log       *logger.Logger

	status    session.Status
	anchor    mgl32.Vec3
	immersive bool
	history   historyState

	spinner spinner.Model
	input   textinput.Model
	typing  bool
	width   int
}

// Messages.
type (
	tickMsg       time.Time
	statusMsg     session.Status
	statusEndMsg  struct{}
	historyMsg    []domain.Interaction
	historyErrMsg struct{ err error }
)

func newModel(controls Controls, status <-chan session.Status, placement Placement, log *logger.Logger) model {
	ti := textinput.New()
	// Plain-text prompt keeps the textinput width math correct.
	ti.Prompt = "you> "
	ti.PromptStyle = promptStyle
	ti.TextStyle = userStyle
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = chatStyle

	return model{
		controls:  controls,
		statusCh:  status,
		placement: placement,
		log:       log,
		spinner:   sp,
		input:     ti,
		status:    session.Status{Avatar: domain.RestingState},
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tickCmd(),
		m.spinner.Tick,
		waitStatus(m.statusCh),
	}
	if m.history.enabled {
		cmds = append(cmds, waitHistory(m.history.snaps, m.history.errs))
	}
	return tea.Batch(cmds...)
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitStatus(ch <-chan session.Status) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return statusEndMsg{}
		}
		return statusMsg(s)
	}
}

func waitHistory(snaps <-chan []domain.Interaction, errs <-chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			return historyMsg(s)
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return historyErrMsg{err: err}
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.typing {
			return m.updateTyping(msg)
		}
		switch msg.String() {
		case " ":
			if !m.status.Busy {
				m.controls.ToggleMic()
			}
		case "t":
			if !m.status.Busy && !m.status.Recording {
				m.typing = true
				cmd := m.input.Focus()
				return m, cmd
			}
		case "h":
			if m.history.enabled {
				m.history.visible = !m.history.visible
			}
		case "q", "esc":
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		const promptLen = 5
		if msg.Width > promptLen {
			m.input.Width = msg.Width - promptLen
		}
		return m, nil

	case tickMsg:
		if m.placement != nil {
			m.anchor = m.placement.Anchor()
			m.immersive = m.placement.Immersive()
		}
		return m, tickCmd()

	case statusMsg:
		m.status = session.Status(msg)
		return m, waitStatus(m.statusCh)

	case statusEndMsg:
		return m, tea.Quit

	case historyMsg:
		m.history.loading = false
		m.history.items = msg
		return m, waitHistory(m.history.snaps, m.history.errs)

	case historyErrMsg:
		m.log.Error("display: history feed: %v", msg.err)
		m.history.loading = false
		return m, waitHistory(m.history.snaps, m.history.errs)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) updateTyping(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.typing = false
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case tea.KeyEnter:
		v := strings.TrimSpace(m.input.Value())
		m.typing = false
		m.input.Blur()
		m.input.Reset()
		if v != "" {
			m.controls.SubmitText(v)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(m.renderBar())
	b.WriteString("\n\n")

	if m.status.Busy {
		b.WriteString("  " + m.spinner.View() + " " + chatStyle.Render(m.status.Line()))
	} else {
		b.WriteString("  " + chatStyle.Render(m.status.Line()))
	}
	b.WriteString("\n\n")

	hint := m.status.Hint()
	if m.status.Recording {
		b.WriteString("  " + recordingStyle.Render("● "+hint))
	} else {
		b.WriteString("  " + secondaryStyle.Render(hint))
	}
	b.WriteString(secondaryStyle.Render("   [space] mic  [t] type  [h] history  [q] quit"))
	b.WriteByte('\n')

	if m.typing {
		b.WriteByte('\n')
		b.WriteString(m.input.View())
		b.WriteByte('\n')
	}

	if m.history.visible {
		b.WriteByte('\n')
		b.WriteString(m.renderHistory())
		b.WriteByte('\n')
	}
	return b.String()
}

func (m model) renderBar() string {
	immersive := "off"
	if m.immersive {
		immersive = "on"
	}
	parts := []string{
		labelStyle.Render("avatar: ") + valueStyle.Render(m.status.Avatar.String()),
		labelStyle.Render("anchor: ") + valueStyle.Render(fmtVec(m.anchor)),
		labelStyle.Render("immersive: ") + valueStyle.Render(immersive),
	}
	content := " " + strings.Join(parts, sepStyle.Render("  │  ")) + " "

	w := m.width
	if w <= 0 {
		w = 80
	}
	return barBg.Width(w).Render(content)
}

func (m model) renderHistory() string {
	var body string
	switch {
	case m.history.loading:
		body = secondaryStyle.Render(historyLoading)
	case len(m.history.items) == 0:
		body = secondaryStyle.Render(historyEmpty)
	default:
		var lines []string
		for _, in := range m.history.items {
			lines = append(lines,
				secondaryStyle.Render(in.Timestamp.Local().Format("Jan 2 15:04:05")),
				"  "+userStyle.Render("you: ")+in.UserInput,
				"  "+chatStyle.Render("mate: ")+in.ResponseText,
			)
		}
		body = strings.Join(lines, "\n")
	}
	return panelStyle.Render(body)
}

// ── Helpers ──────────────────────────────────────────────────────

func fmtVec(v mgl32.Vec3) string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", v.X(), v.Y(), v.Z())
}
