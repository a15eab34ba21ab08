package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sift/engine"
	"github.com/pithecene-io/sift/feed"
	"github.com/pithecene-io/sift/types"
)

// keyMap defines the triage key bindings. Arrow keys mirror the swipe
// directions: horizontal decides, vertical navigates.
type keyMap struct {
	Keep    key.Binding
	Delete  key.Binding
	Next    key.Binding
	Prev    key.Binding
	Retry   key.Binding
	Restart key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Keep: key.NewBinding(
		key.WithKeys("right", "k"),
		key.WithHelp("→/k", "keep"),
	),
	Delete: key.NewBinding(
		key.WithKeys("left", "d"),
		key.WithHelp("←/d", "delete"),
	),
	Next: key.NewBinding(
		key.WithKeys("up", "n"),
		key.WithHelp("↑/n", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("down", "p"),
		key.WithHelp("↓/p", "back"),
	),
	Retry: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "retry"),
	),
	Restart: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "restart"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// viewMsg delivers an engine view update to the model.
type viewMsg struct {
	view engine.View
}

// TriageModel is the Bubble Tea model for the triage session.
type TriageModel struct {
	ctx    context.Context
	engine *engine.Engine

	view      engine.View
	statusErr string
	width     int
	height    int
	quitting  bool
}

// NewTriageModel creates a triage model seeded with the engine's
// current view.
func NewTriageModel(ctx context.Context, e *engine.Engine) TriageModel {
	return TriageModel{
		ctx:    ctx,
		engine: e,
		view:   e.View(),
	}
}

// Init implements tea.Model.
func (m TriageModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TriageModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case viewMsg:
		m.view = msg.view
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m TriageModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Keep):
		m.statusErr = ""
		if _, err := m.engine.RecordDecision(m.ctx, types.DecisionKept); err != nil {
			m.statusErr = err.Error()
		}

	case key.Matches(msg, keys.Delete):
		m.statusErr = ""
		if _, err := m.engine.RecordDecision(m.ctx, types.DecisionDeleted); err != nil {
			m.statusErr = err.Error()
		}

	case key.Matches(msg, keys.Next):
		m.statusErr = ""
		m.engine.Advance(m.ctx)

	case key.Matches(msg, keys.Prev):
		m.statusErr = ""
		m.engine.Retreat(m.ctx)

	case key.Matches(msg, keys.Retry):
		m.statusErr = ""
		m.engine.RetryCurrent(m.ctx)

	case key.Matches(msg, keys.Restart):
		m.statusErr = ""
		if err := m.engine.Restart(m.ctx, false); err != nil {
			m.statusErr = err.Error()
		}
	}

	// Key-driven mutation; the refreshed view arrives via the
	// observer, but render the synchronous state immediately so a
	// dropped notification can't leave a stale frame.
	m.view = m.engine.View()
	return m, nil
}

// View implements tea.Model.
func (m TriageModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.view.Phase {
	case feed.PhaseEmpty:
		content = m.renderEmpty()
	case feed.PhaseAllDecided:
		content = m.renderAllDecided()
	default:
		content = m.renderCard()
	}

	return content + "\n" + m.renderHelp()
}

func (m TriageModel) renderEmpty() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("sift"))
	b.WriteString("\n")
	b.WriteString(ValueStyle.Render("No media matched the query."))
	return CardStyle.Render(b.String())
}

func (m TriageModel) renderAllDecided() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("All caught up"))
	b.WriteString("\n")
	b.WriteString(m.renderCounters())
	b.WriteString("\n\n")
	b.WriteString(HelpStyle.Render("R to go through everything again"))
	return CardStyle.Render(b.String())
}

func (m TriageModel) renderCard() string {
	v := m.view

	var b strings.Builder
	title := "sift"
	if v.SessionID != "" {
		title = fmt.Sprintf("sift · %d/%d · %d undecided",
			v.CurrentIndex+1, v.WindowLen, v.UndecidedTotal)
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	if v.HasCurrent {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Asset:"),
			ValueStyle.Render(v.Current.ID)))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Kind:"),
			BadgeStyle.Render(string(v.Current.Kind))))

		load := v.CurrentLoad.String()
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Media:"),
			LoadStyle(load).Render(load)))
	}

	if v.BackwardLimit > 0 {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("History:"),
			ValueStyle.Render(fmt.Sprintf("back to #%d", v.BackwardLimit+1))))
	}

	if v.LastSignal == feed.SignalEndOfFeed {
		b.WriteString("\n")
		b.WriteString(PendingStyle.Render("End of feed."))
		b.WriteString("\n")
	}
	if v.LastSignal == feed.SignalBackwardLimit {
		b.WriteString("\n")
		b.WriteString(PendingStyle.Render("Backward limit reached."))
		b.WriteString("\n")
	}

	if v.CurrentError != "" {
		b.WriteString("\n")
		b.WriteString(DeleteStyle.Render(v.CurrentError))
		b.WriteString(HelpStyle.Render("  press r to retry"))
		b.WriteString("\n")
	}
	if m.statusErr != "" {
		b.WriteString("\n")
		b.WriteString(DeleteStyle.Render(m.statusErr))
		b.WriteString("\n")
	}

	card := CardStyle.Render(b.String())
	return lipgloss.JoinVertical(lipgloss.Left, card, m.renderCounters())
}

func (m TriageModel) renderCounters() string {
	boxes := []string{
		m.renderCountBox("Kept", m.view.Kept, keepColor),
		m.renderCountBox("Deleted", m.view.Deleted, deleteColor),
		m.renderCountBox("Seen", m.view.SeenOnly, mutedColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m TriageModel) renderCountBox(label string, value int, color lipgloss.Color) string {
	boxStyle := CountBoxStyle.BorderForeground(color)

	valueStr := CountValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := CountLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return boxStyle.Render(content)
}

func (m TriageModel) renderHelp() string {
	bindings := []key.Binding{
		keys.Delete, keys.Keep, keys.Next, keys.Prev,
		keys.Retry, keys.Restart, keys.Quit,
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return HelpStyle.Render(strings.Join(parts, " · "))
}

// Run starts the triage TUI over a started engine and blocks until
// the user quits or the context is cancelled.
func Run(ctx context.Context, e *engine.Engine) error {
	p := tea.NewProgram(NewTriageModel(ctx, e),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	e.Subscribe(func(v engine.View) {
		p.Send(viewMsg{view: v})
	})

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		// Context cancellation (signal) is a clean shutdown.
		return nil
	}
	return err
}
