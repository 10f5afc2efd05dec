package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/branch-engine/internal/config"
	"github.com/jwebster45206/branch-engine/internal/session"
	"github.com/jwebster45206/branch-engine/pkg/engine"
	"github.com/jwebster45206/branch-engine/pkg/state"
	"github.com/jwebster45206/branch-engine/pkg/textfilter"
)

const (
	PlaceHolderText = "Enter your name..."

	damageIndicatorDuration = 500 * time.Millisecond
	jumpscareDuration       = 2 * time.Second
	statusDuration          = 3 * time.Second
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config  *config.Config
	manager *session.Manager
	gameID  uuid.UUID
	logger  *slog.Logger
	ctx     context.Context

	view      *session.View
	nameInput textinput.Model
	sceneView viewport.Model
	selected  int
	width     int
	height    int
	ready     bool
	err       error
	status    string

	// Typewriter state for the current node text
	text     []rune
	revealed int

	// seq identifies the latest scene-changing result so stale timers can be ignored
	seq        int
	lastDamage int

	showQuitModal bool
}

// viewMsg carries the view after an action (or resume) has been applied.
type viewMsg struct {
	kind engine.Kind
	view *session.View
	err  error
}

type typewriterTickMsg struct{ seq int }

type damageTimeoutMsg struct{ seq int }

type jumpscareTimeoutMsg struct{ seq int }

type exportedMsg struct{ err error }

type clearStatusMsg struct{ status string }

// kindResume marks the view produced at startup; it is not an engine action.
const kindResume engine.Kind = "resume"

var (
	scenePanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(3).
			PaddingRight(3)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160")). // blood red
			Bold(true)

	narrationStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	selectedChoiceStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("160")).
				Bold(true)

	hudStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("52")).
			PaddingLeft(3).
			PaddingRight(3)

	hudDamagedStyle = hudStyle.
			BorderForeground(lipgloss.Color("196")).
			MarginLeft(1)

	damageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // amber

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	jumpscareStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Background(lipgloss.Color("0")).
			Bold(true).
			Padding(2, 6).
			Align(lipgloss.Center)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("52")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160")).
			Bold(true).
			Align(lipgloss.Center)
)

func NewConsoleUI(cfg *config.Config, manager *session.Manager, gameID uuid.UUID, logger *slog.Logger) ConsoleUI {
	ti := textinput.New()
	ti.Placeholder = PlaceHolderText
	ti.Prompt = promptStyle.Render(":: ")
	ti.CharLimit = engine.MaxNameLength
	ti.Width = engine.MaxNameLength + 2
	ti.Focus()

	vp := viewport.New(60, 20)
	vp.MouseWheelEnabled = true

	return ConsoleUI{
		config:    cfg,
		manager:   manager,
		gameID:    gameID,
		logger:    logger,
		ctx:       context.Background(),
		nameInput: ti,
		sceneView: vp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.resume(), textinput.Blink)
}

func (m ConsoleUI) resume() tea.Cmd {
	return func() tea.Msg {
		if _, err := m.manager.Resume(m.ctx, m.gameID); err != nil {
			return viewMsg{kind: kindResume, err: err}
		}
		v, err := m.manager.View(m.ctx, m.gameID)
		return viewMsg{kind: kindResume, view: v, err: err}
	}
}

// dispatch applies a through the session manager. The view is refreshed even
// when the action is rejected so the screen always reflects storage.
func (m ConsoleUI) dispatch(a engine.Action) tea.Cmd {
	return func() tea.Msg {
		_, derr := m.manager.Dispatch(m.ctx, m.gameID, a)
		v, err := m.manager.View(m.ctx, m.gameID)
		if derr != nil {
			err = derr
		}
		return viewMsg{kind: a.Kind(), view: v, err: err}
	}
}

func (m ConsoleUI) export() tea.Cmd {
	return func() tea.Msg {
		data, err := m.manager.Export(m.ctx, m.gameID)
		if err != nil {
			return exportedMsg{err: err}
		}
		return exportedMsg{err: clipboard.WriteAll(string(data))}
	}
}

func (m ConsoleUI) typewriterTick() tea.Cmd {
	seq := m.seq
	return tea.Tick(m.config.TypewriterDelay, func(time.Time) tea.Msg {
		return typewriterTickMsg{seq: seq}
	})
}

func clearStatusAfter(status string) tea.Cmd {
	return tea.Tick(statusDuration, func(time.Time) tea.Msg {
		return clearStatusMsg{status: status}
	})
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		return m, nil

	case viewMsg:
		return m.applyView(msg)

	case typewriterTickMsg:
		if msg.seq != m.seq || m.fullyRevealed() {
			return m, nil
		}
		if m.view != nil && m.view.State.PendingJumpscare == nil {
			m.revealed++
			m.refreshScene()
		}
		return m, m.typewriterTick()

	case damageTimeoutMsg:
		if msg.seq != m.seq || m.view == nil || !m.view.State.DamageTaken {
			return m, nil
		}
		return m, m.dispatch(engine.AcknowledgeDamage{})

	case jumpscareTimeoutMsg:
		if msg.seq != m.seq || m.view == nil || m.view.State.PendingJumpscare == nil {
			return m, nil
		}
		return m, m.dispatch(engine.ClearJumpscare{})

	case exportedMsg:
		if msg.err != nil {
			m.logger.Warn("Failed to export snapshot", "error", msg.err)
			m.status = "Could not copy snapshot: " + msg.err.Error()
		} else {
			m.status = "Snapshot copied to clipboard"
		}
		return m, clearStatusAfter(m.status)

	case clearStatusMsg:
		if m.status == msg.status {
			m.status = ""
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.showQuitModal = true
			return m, nil
		case tea.KeyCtrlE:
			if m.view != nil && m.view.State.GameStarted {
				return m, m.export()
			}
			return m, nil
		}
		if m.view == nil {
			return m, nil
		}
		switch {
		case !m.view.State.GameStarted:
			return m.updateStartScreen(msg)
		case m.view.PathNotFound:
			return m.updatePathNotFound(msg)
		case m.view.State.PendingJumpscare != nil:
			return m, m.dispatch(engine.ClearJumpscare{})
		case m.view.Terminal:
			return m.updateEnding(msg)
		default:
			return m.updateScene(msg)
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.sceneView, cmd = m.sceneView.Update(msg)
		return m, cmd
	}

	if m.view != nil && !m.view.State.GameStarted {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// applyView installs a new view. Results that may change the scene restart
// the typewriter and arm the damage and jumpscare timers.
func (m ConsoleUI) applyView(msg viewMsg) (tea.Model, tea.Cmd) {
	m.err = msg.err
	switch {
	case msg.err == nil:
	case errIsRejection(msg.err):
		m.logger.Debug("Action rejected", "action", msg.kind, "error", msg.err)
	default:
		m.logger.Warn("Action failed", "action", msg.kind, "error", msg.err)
	}
	if msg.view == nil {
		return m, nil
	}

	prev := m.view
	m.view = msg.view

	if msg.kind == engine.KindAcknowledgeDamage || msg.kind == engine.KindClearJumpscare {
		m.refreshScene()
		return m, nil
	}

	m.seq++
	m.selected = 0
	m.lastDamage = 0
	if prev != nil && m.view.State.DamageTaken && prev.State.HP > m.view.State.HP {
		m.lastDamage = prev.State.HP - m.view.State.HP
	}

	var cmds []tea.Cmd
	if !m.view.State.GameStarted {
		m.nameInput.Reset()
		m.nameInput.Focus()
		cmds = append(cmds, textinput.Blink)
	} else {
		m.nameInput.Blur()
	}

	m.text = nil
	m.revealed = 0
	if m.view.Node != nil {
		m.text = []rune(textfilter.Normalize(m.view.Node.Text))
		if m.config.TypewriterDelay <= 0 {
			m.revealed = len(m.text)
		} else {
			cmds = append(cmds, m.typewriterTick())
		}
	}

	seq := m.seq
	if m.view.State.DamageTaken {
		cmds = append(cmds, tea.Tick(damageIndicatorDuration, func(time.Time) tea.Msg {
			return damageTimeoutMsg{seq: seq}
		}))
	}
	if m.view.State.PendingJumpscare != nil {
		cmds = append(cmds, tea.Tick(jumpscareDuration, func(time.Time) tea.Msg {
			return jumpscareTimeoutMsg{seq: seq}
		}))
	}

	m.refreshScene()
	return m, tea.Batch(cmds...)
}

func (m ConsoleUI) updateStartScreen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type != tea.KeyEnter {
		var cmd tea.Cmd
		m.nameInput, cmd = m.nameInput.Update(msg)
		return m, cmd
	}
	name, err := engine.NormalizeName(m.nameInput.Value())
	if err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	return m, m.dispatch(engine.Start{Name: name})
}

func (m ConsoleUI) updatePathNotFound(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", "R", "enter":
		return m, m.dispatch(engine.Reset{})
	}
	return m, nil
}

func (m ConsoleUI) updateEnding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.fullyRevealed() {
		m.revealAll()
		return m, nil
	}
	switch msg.String() {
	case "r", "R", "enter":
		return m, m.dispatch(engine.Reset{})
	}
	return m, nil
}

func (m ConsoleUI) updateScene(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.fullyRevealed() {
		m.revealAll()
		return m, nil
	}

	choices := m.view.Choices
	switch msg.Type {
	case tea.KeyUp:
		if m.selected > 0 {
			m.selected--
		}
	case tea.KeyDown:
		if m.selected < len(choices)-1 {
			m.selected++
		}
	case tea.KeyEnter:
		if m.selected < len(choices) {
			return m, m.dispatch(engine.Choose{To: choices[m.selected].To})
		}
	case tea.KeyRunes:
		if len(msg.Runes) == 1 && msg.Runes[0] >= '1' && msg.Runes[0] <= '9' {
			idx := int(msg.Runes[0] - '1')
			if idx < len(choices) {
				return m, m.dispatch(engine.Choose{To: choices[idx].To})
			}
		}
	}
	m.refreshScene()
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter:
			return m, tea.Quit
		case tea.KeyEsc:
			m.showQuitModal = false
			return m, nil
		default:
			switch msg.String() {
			case "y", "Y":
				return m, tea.Quit
			case "n", "N":
				m.showQuitModal = false
				return m, nil
			}
		}
	}

	return m, nil
}

func (m *ConsoleUI) fullyRevealed() bool {
	return m.revealed >= len(m.text)
}

func (m *ConsoleUI) revealAll() {
	m.revealed = len(m.text)
	m.refreshScene()
}

func (m *ConsoleUI) resize() {
	m.sceneView.Width = max(m.width-6, 20)
	m.sceneView.Height = max(m.height-6, 5)
	m.refreshScene()
}

// refreshScene rewraps the revealed text and choices into the viewport.
func (m *ConsoleUI) refreshScene() {
	if m.view == nil || m.view.Node == nil {
		m.sceneView.SetContent("")
		return
	}
	width := max(m.sceneView.Width-2, 10)

	var content strings.Builder
	content.WriteString(narrationStyle.Render(wordwrap.String(string(m.text[:m.revealed]), width)))
	content.WriteString("\n\n")

	if m.fullyRevealed() {
		switch {
		case m.view.Terminal:
			content.WriteString(m.endingFooter())
		default:
			for i, c := range m.view.Choices {
				line := wordwrap.String(fmt.Sprintf("%d. %s", i+1, c.Text), width-2)
				if i == m.selected {
					content.WriteString(selectedChoiceStyle.Render("▶ " + line))
				} else {
					content.WriteString(choiceStyle.Render("  " + line))
				}
				content.WriteString("\n")
			}
		}
	}

	m.sceneView.SetContent(content.String())
}

func (m ConsoleUI) endingFooter() string {
	var footer strings.Builder
	if m.view.Died {
		footer.WriteString(damageStyle.Render("YOU HAVE DIED"))
	} else {
		footer.WriteString(titleStyle.Render("THE END"))
	}
	footer.WriteString("\n\n")
	footer.WriteString(promptStyle.Render("Press Enter to play again"))
	return footer.String()
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if !m.ready || m.view == nil {
		if m.err != nil {
			return errorStyle.Render("\n  Error: " + m.err.Error())
		}
		return "\n  Initializing..."
	}

	switch {
	case !m.view.State.GameStarted:
		return m.renderStartScreen()
	case m.view.PathNotFound:
		return m.renderPathNotFound()
	case m.view.State.PendingJumpscare != nil:
		return m.renderJumpscare()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		renderHUD(m.view.State, m.lastDamage, m.width),
		scenePanelStyle.Render(m.sceneView.View()),
		m.renderFooter(),
	)
}

func (m ConsoleUI) renderFooter() string {
	var parts []string
	if m.err != nil {
		parts = append(parts, errorStyle.Render("Error: "+m.err.Error()))
	}
	if m.status != "" {
		parts = append(parts, statusStyle.Render(m.status))
	}
	parts = append(parts, promptStyle.Render("↑/↓ or 1-9 to choose • Enter to confirm • Ctrl+E copy save • Esc quit"))
	return scenePanelStyle.Render(strings.Join(parts, "\n"))
}

func (m ConsoleUI) renderStartScreen() string {
	title := textfilter.Title(m.manager.Graph().Name())

	var content strings.Builder
	content.WriteString(titleStyle.Render(strings.ToUpper(title)))
	content.WriteString("\n\n")
	content.WriteString("Who dares to enter the forest?\n\n")
	content.WriteString(m.nameInput.View())
	content.WriteString("\n\n")
	if m.err != nil {
		content.WriteString(errorStyle.Render(m.err.Error()))
		content.WriteString("\n\n")
	}
	content.WriteString(promptStyle.Render("Press Enter to begin, Esc to quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderPathNotFound() string {
	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Path Not Found"))
	content.WriteString("\n\n")
	content.WriteString(fmt.Sprintf("The way to %q has vanished from the story.", m.view.State.CurrentScene))
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press R to start over"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderJumpscare() string {
	js := m.view.State.PendingJumpscare
	var content strings.Builder
	content.WriteString("!!!")
	if js.Image != "" {
		content.WriteString("\n\n" + js.Image)
	}
	if js.Sound != "" {
		content.WriteString("\n♪ " + js.Sound)
	}
	banner := jumpscareStyle.Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, banner,
		lipgloss.WithWhitespaceChars(" "), lipgloss.WithWhitespaceBackground(lipgloss.Color("0")))
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit Game?"))
	content.WriteString("\n\n")
	content.WriteString("Your progress is saved. Leave the forest for now?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

// hpColor returns the bar colour for the given health.
func hpColor(hp int) string {
	switch pct := hp * 100 / state.MaxHP; {
	case pct > 60:
		return "#22c55e" // green
	case pct > 30:
		return "#eab308" // yellow
	default:
		return "#dc2626" // red
	}
}

// renderHUD draws the player name, health bar and inventory. While damage is
// unacknowledged the panel is offset and the loss is shown next to the bar.
func renderHUD(gs *state.GameState, damage int, width int) string {
	barWidth := 20
	if width > 0 && width/4 < barWidth {
		barWidth = max(width/4, 5)
	}
	bar := progress.New(
		progress.WithSolidFill(hpColor(gs.HP)),
		progress.WithoutPercentage(),
		progress.WithWidth(barWidth),
	)
	hp := max(gs.HP, 0)

	var line strings.Builder
	line.WriteString(titleStyle.Render(gs.PlayerName))
	line.WriteString("   ")
	line.WriteString(bar.ViewAs(float64(hp) / float64(state.MaxHP)))
	line.WriteString(fmt.Sprintf(" %3d/%d", hp, state.MaxHP))
	if gs.DamageTaken && damage > 0 {
		line.WriteString("  " + damageStyle.Render(fmt.Sprintf("-%d HP", damage)))
	}

	line.WriteString("   ")
	if len(gs.Inventory) == 0 {
		line.WriteString(promptStyle.Render("(empty-handed)"))
	} else {
		items := make([]string, 0, len(gs.Inventory))
		for _, item := range gs.Inventory {
			items = append(items, itemStyle.Render(textfilter.Title(string(item))))
		}
		line.WriteString(strings.Join(items, " · "))
	}

	style := hudStyle
	if gs.DamageTaken {
		style = hudDamagedStyle
	}
	return style.Render(line.String())
}

// errIsRejection reports whether err is a rejected action rather than a failure.
func errIsRejection(err error) bool {
	return errors.Is(err, engine.ErrInvalidChoice) ||
		errors.Is(err, engine.ErrNotStarted) ||
		errors.Is(err, engine.ErrInvalidName)
}
