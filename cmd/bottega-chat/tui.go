package main

import (
	"context"
	"fmt"
	"strings"

	"bottegachat/internal/chat"
	"bottegachat/internal/config"
	"bottegachat/internal/render"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog/log"
)

const (
	appTitle        = "Bottega Bot 🤖 Bottega Restaurant AI"
	typingIndicator = "Bottega-Bot is thinking..."
	inputHint       = "Type your message..."
	userLabel       = "You"
	botLabel        = "Bottega-Bot"
)

type model struct {
	ctx      context.Context
	cfg      config.Config
	ctrl     *chat.Controller
	renderer *render.Renderer

	snap        chat.Snapshot
	statusLine  string
	quitConfirm bool

	width  int
	height int

	input    textinput.Model
	timeline viewport.Model
	spinner  spinner.Model

	theme uiTheme
}

// turnSettledMsg carries the result of the only asynchronous step of a turn back
// onto the Update loop.
type turnSettledMsg struct {
	outcome chat.Outcome
}

type uiTheme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	title       lipgloss.Style
	panel       lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	inputPanel  lipgloss.Style
	typing      lipgloss.Style
	helpText    lipgloss.Style
	userLabel   lipgloss.Style
	botLabel    lipgloss.Style
	modal       lipgloss.Style
	modalPick   lipgloss.Style
}

func newTheme() uiTheme {
	amber := lipgloss.Color("#f4a259")
	basil := lipgloss.Color("#5b8e7d")
	tomato := lipgloss.Color("#bc4b51")
	panelBg := lipgloss.Color("#1f1a17")
	text := lipgloss.Color("#f7f3ec")
	muted := lipgloss.Color("#a89f94")

	return uiTheme{
		root: lipgloss.NewStyle().
			Foreground(text).
			Padding(0, 1),
		header: lipgloss.NewStyle().
			Background(panelBg).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		title: lipgloss.NewStyle().
			Foreground(amber).
			Bold(true),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(basil).
			Padding(0, 1),
		footer: lipgloss.NewStyle().
			Foreground(muted).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(tomato).
			Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(basil).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(tomato).Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(0, 1),
		typing:    lipgloss.NewStyle().Foreground(amber).Italic(true),
		helpText:  lipgloss.NewStyle().Foreground(muted),
		userLabel: lipgloss.NewStyle().Foreground(basil).Bold(true),
		botLabel:  lipgloss.NewStyle().Foreground(amber).Bold(true),
		modal: lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(tomato).
			Padding(1, 2),
		modalPick: lipgloss.NewStyle().Foreground(tomato).Bold(true),
	}
}

func newModel(ctx context.Context, cfg config.Config, ctrl *chat.Controller, renderer *render.Renderer) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 4000
	input.Placeholder = inputHint
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#f4a259"))

	timeline := viewport.New(0, 0)
	timeline.MouseWheelEnabled = true
	timeline.MouseWheelDelta = 4

	return model{
		ctx:        ctx,
		cfg:        cfg,
		ctrl:       ctrl,
		renderer:   renderer,
		snap:       ctrl.Snapshot(),
		statusLine: "ready",
		input:      input,
		timeline:   timeline,
		spinner:    sp,
		theme:      newTheme(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink)
}

// exchangeCmd runs the backend call off the Update loop.
func exchangeCmd(ctx context.Context, ex *chat.Exchange) tea.Cmd {
	return func() tea.Msg {
		return turnSettledMsg{outcome: ex.Run(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case turnSettledMsg:
		m.ctrl.Settle(msg.outcome)
		m.snap = m.ctrl.Snapshot()
		if m.snap.LastError != nil {
			m.statusLine = "error: " + compactSingleLine(m.snap.LastError.Error(), 160)
		} else {
			m.statusLine = fmt.Sprintf("ready · thread=%s", m.snap.SessionID)
		}
		cmds = append(cmds, m.input.Focus())
		m.renderPanes(true)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.renderPanes(false)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		if m.quitConfirm {
			break
		}
		var cmd tea.Cmd
		m.timeline, cmd = m.timeline.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.quitConfirm {
			switch msg.String() {
			case "y", "Y", "enter":
				return m, tea.Quit
			case "n", "N", "esc":
				m.quitConfirm = false
				m.statusLine = "quit canceled"
			}
			return m, nil
		}

		switch msg.String() {
		case "esc":
			m.quitConfirm = true
			return m, nil
		case "enter":
			cmd := m.submit()
			return m, cmd
		case "pgup", "ctrl+b":
			m.timeline.LineUp(8)
			return m, nil
		case "pgdown", "ctrl+f":
			m.timeline.LineDown(8)
			return m, nil
		case "up":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.timeline.LineUp(4)
				return m, nil
			}
		case "down":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.timeline.LineDown(4)
				return m, nil
			}
		case "home":
			m.timeline.GotoTop()
			return m, nil
		case "end":
			m.timeline.GotoBottom()
			return m, nil
		}
		if m.snap.IsBotResponding {
			return m, tea.Batch(cmds...)
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// submit hands the input to the controller. A blank input or a turn already in
// flight is a no-op.
func (m *model) submit() tea.Cmd {
	m.ctrl.SetInput(m.input.Value())
	ex, ok := m.ctrl.Begin()
	if !ok {
		return nil
	}
	m.snap = m.ctrl.Snapshot()
	m.input.SetValue(m.snap.Input)
	m.input.Blur()
	m.statusLine = "waiting for " + botLabel
	m.renderPanes(true)
	log.Debug().Str("thread_id", ex.Request().ThreadID).Msg("turn submitted")
	return exchangeCmd(m.ctx, ex)
}

func (m model) View() string {
	header := m.renderHeader()
	content := m.renderContent()
	input := m.renderInput()
	footer := m.renderFooter()
	out := lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer)
	if m.quitConfirm {
		out = m.renderQuitModal()
	}
	return m.theme.root.Render(out)
}

func (m *model) contentWidth() int {
	return maxInt(40, m.width-4)
}

func (m *model) renderHeader() string {
	title := m.theme.title.Render(appTitle)
	threadMeta := m.theme.helpText.Render(fmt.Sprintf(
		"Thread: %s · Backend: %s",
		nullCoalesce(m.snap.SessionID, "n/a"),
		compactSingleLine(m.cfg.BackendURL, 48),
	))
	joined := lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", threadMeta)
	return m.theme.header.Width(m.contentWidth()).Render(joined)
}

func (m *model) renderContent() string {
	return m.theme.panel.Width(m.contentWidth()).Render(m.timeline.View())
}

func (m *model) renderInput() string {
	inputView := m.input.View()
	if m.snap.IsTyping {
		inputView = m.spinner.View() + " " + m.theme.typing.Render(typingIndicator) + "\n" + inputView
	}
	return m.theme.inputPanel.Width(m.contentWidth()).Render(inputView)
}

func (m *model) renderFooter() string {
	statusStyle := m.theme.status
	lower := strings.ToLower(m.statusLine)
	if strings.Contains(lower, "failed") || strings.Contains(lower, "error") {
		statusStyle = m.theme.errorStatus
	}
	line := statusStyle.Render(compactSingleLine(m.statusLine, 180))
	hints := m.theme.helpText.Render("Keys: Enter send · PgUp/PgDn or Up/Down (input empty) scroll · Home/End · Esc quit prompt · Ctrl+C quit")
	return m.theme.footer.Width(m.contentWidth()).Render(line + "\n" + hints)
}

func (m *model) renderQuitModal() string {
	canvasWidth := m.contentWidth()
	canvasHeight := maxInt(12, m.height-4)
	modalWidth := clampInt(int(float64(canvasWidth)*0.56), 32, 78)
	if modalWidth > canvasWidth-2 {
		modalWidth = canvasWidth - 2
	}

	body := strings.Join([]string{
		m.theme.errorStatus.Render("Leave the conversation?"),
		m.theme.helpText.Render("The conversation is not saved once you quit."),
		"",
		m.theme.modalPick.Render("[Y / Enter] Quit") + "    " + m.theme.helpText.Render("[N / Esc] Return"),
	}, "\n")
	panel := m.theme.modal.Width(modalWidth).Render(body)
	return lipgloss.Place(canvasWidth, canvasHeight, lipgloss.Center, lipgloss.Center, panel)
}

func (m *model) resize() {
	m.input.Width = maxInt(20, m.contentWidth()-6)
	m.timeline.Width = maxInt(20, m.contentWidth()-4)
	// header, input, typing line and footer take 11 rows
	m.timeline.Height = maxInt(5, m.height-13)
	if err := m.renderer.SetWidth(m.timeline.Width - 2); err != nil {
		log.Warn().Err(err).Msg("could not resize markdown renderer")
	}
}

// renderPanes redraws the timeline. When the log changed it always scrolls to the
// latest turn; otherwise the reader's scroll position is kept.
func (m *model) renderPanes(logChanged bool) {
	prevYOffset := m.timeline.YOffset
	prevAtBottom := m.timeline.AtBottom()
	m.timeline.SetContent(m.renderTimeline())
	if logChanged || prevAtBottom {
		m.timeline.GotoBottom()
	} else {
		m.timeline.SetYOffset(prevYOffset)
	}
}

func (m *model) renderTimeline() string {
	if len(m.snap.Turns) == 0 {
		return m.theme.helpText.Render("No messages yet. Ask about the menu, your cart or an order.")
	}
	var b strings.Builder
	for _, turn := range m.snap.Turns {
		if turn.IsUser {
			b.WriteString(m.theme.userLabel.Render(userLabel))
			b.WriteString("\n")
			b.WriteString(wrapText(turn.Text, maxInt(24, m.timeline.Width-2)))
		} else {
			b.WriteString(m.theme.botLabel.Render(botLabel))
			b.WriteString("\n")
			b.WriteString(m.renderer.Markdown(turn.Text))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
