package main

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/questkeeper/internal/replication"
)

const PlaceHolderText = "Type a command, /help for the list..."

// sender is the part of Conn the UI needs.
type sender interface {
	Send(replication.Message) error
}

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config       *ConsoleConfig
	conn         sender
	view         *worldView
	rng          *rand.Rand
	log          []string
	logViewport  viewport.Model
	metaViewport viewport.Model
	textarea     textarea.Model
	ready        bool
	width        int
	height       int
	closed       bool
}

var (
	logPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingLeft(2)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(1).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")) // green

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

var helpText = []string{
	"/open <chest>         open a chest",
	"/pickup <n>           pick up ground item n",
	"/talk <npc>           talk to an npc",
	"/choose <n>           pick dialogue option n",
	"/close                end the conversation",
	"/attack <n> [damage]  attack enemy n",
	"/move <x> <y> [map]   report your position",
	"/hotbar <slot>        move a backpack slot to the hotbar",
	"/bag <slot>           move a hotbar slot to the backpack",
	"/save                 save now",
	"/copy                 copy your player id",
	"/quit                 leave",
}

func NewConsoleUI(cfg *ConsoleConfig, conn sender) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Focus()
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 200
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false

	logVp := viewport.New(50, 20)
	logVp.MouseWheelEnabled = true

	return ConsoleUI{
		config:       cfg,
		conn:         conn,
		view:         newWorldView(),
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		textarea:     ta,
		logViewport:  logVp,
		metaViewport: viewport.New(30, 20),
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return textarea.Blink
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		logWidth := int(float64(m.width)*0.65) - 2
		metaWidth := m.width - logWidth - 4
		m.logViewport.Width = logWidth
		m.logViewport.Height = m.height - 4
		m.metaViewport.Width = metaWidth
		m.metaViewport.Height = m.height - 2
		m.textarea.SetWidth(logWidth - 2)
		m.ready = true
		m.refresh()

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			input := strings.TrimSpace(m.textarea.Value())
			m.textarea.Reset()
			if input == "" {
				return m, nil
			}
			return m.handleInput(input)
		}

	case serverMsg:
		line, err := m.view.apply(msg.msg)
		switch {
		case err != nil:
			m.appendLog(errorStyle.Render("Error: " + err.Error()))
		case line != "":
			m.appendLog(systemStyle.Render(line))
		}
		m.refresh()
		return m, nil

	case disconnectedMsg:
		m.closed = true
		m.appendLog(errorStyle.Render(fmt.Sprintf("Disconnected: %v", msg.err)))
		m.refresh()
		return m, nil
	}

	m.textarea, tiCmd = m.textarea.Update(msg)
	m.logViewport, vpCmd = m.logViewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m ConsoleUI) handleInput(input string) (tea.Model, tea.Cmd) {
	m.appendLog(userStyle.Render("> " + input))
	cmd := m.runInput(input)
	m.refresh()
	return m, cmd
}

func (m *ConsoleUI) runInput(input string) tea.Cmd {
	switch input {
	case "/quit":
		return tea.Quit
	case "/help":
		for _, l := range helpText {
			m.appendLog(l)
		}
		return nil
	case "/copy":
		if err := clipboard.WriteAll(m.config.PlayerID.String()); err != nil {
			m.appendLog(errorStyle.Render("Copy failed: " + err.Error()))
		} else {
			m.appendLog(systemStyle.Render("Player id copied to clipboard"))
		}
		return nil
	}

	if m.closed {
		m.appendLog(errorStyle.Render("Not connected"))
		return nil
	}
	req, err := parseCommand(input, m.view, m.rng)
	if err != nil {
		m.appendLog(errorStyle.Render(err.Error()))
		return nil
	}
	if err := m.conn.Send(req); err != nil {
		m.appendLog(errorStyle.Render("Send failed: " + err.Error()))
	}
	return nil
}

func (m *ConsoleUI) appendLog(line string) {
	m.log = append(m.log, line)
}

// refresh rebuilds both panels for the current width.
func (m *ConsoleUI) refresh() {
	if !m.ready {
		return
	}
	width := m.logViewport.Width - 4
	if width < 10 {
		width = 10
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("QUESTKEEPER") + "\n\n")
	for _, l := range m.log {
		b.WriteString(wordwrap.String(l, width) + "\n")
	}
	if f := m.view.dialogue; f != nil {
		b.WriteString("\n" + speakerStyle.Render(f.NPCName+": ") + wordwrap.String(f.Text, width) + "\n")
		for i, c := range f.Choices {
			b.WriteString(fmt.Sprintf("  %d) %s\n", i+1, c))
		}
	}
	m.logViewport.SetContent(b.String())
	m.logViewport.GotoBottom()
	m.metaViewport.SetContent(writeMetadata(m.config, m.view))
}

func writeMetadata(cfg *ConsoleConfig, v *worldView) string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("PLAYER") + "\n")
	content.WriteString(cfg.PlayerID.String()[:8] + "...\n\n")

	content.WriteString(titleStyle.Render("BACKPACK") + "\n")
	writeEntries(&content, v.inventory)
	content.WriteString(titleStyle.Render("HOTBAR") + "\n")
	writeEntries(&content, v.hotbar)

	content.WriteString(titleStyle.Render("QUESTS") + "\n")
	if len(v.quests.Active) == 0 {
		content.WriteString("None active\n")
	}
	for _, q := range v.quests.Active {
		content.WriteString(fmt.Sprintf("• %s (%s)\n", q.Title, q.Status))
		for _, o := range q.Objectives {
			content.WriteString(fmt.Sprintf("    %s %d/%d\n", o.Kind, o.Current, o.Required))
		}
	}
	content.WriteString("\n")

	content.WriteString(titleStyle.Render("GROUND") + "\n")
	for i, g := range v.groundList() {
		content.WriteString(fmt.Sprintf("%d) item %d x%d at %.0f,%.0f\n", i+1, g.ItemID, g.Quantity, g.X, g.Y))
	}
	content.WriteString("\n")

	content.WriteString(titleStyle.Render("ENEMIES") + "\n")
	for i, e := range v.enemyList() {
		content.WriteString(fmt.Sprintf("%d) %s %d/%d hp\n", i+1, e.Name, e.HP, e.MaxHP))
	}
	return content.String()
}

func writeEntries(b *strings.Builder, p replication.InventoryPayload) {
	entries := p.Entries()
	if len(entries) == 0 {
		b.WriteString("Empty\n\n")
		return
	}
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("[%d] item %d x%d\n", e.SlotIndex, e.ItemID, e.Quantity))
	}
	b.WriteString("\n")
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "Connecting..."
	}
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.logViewport.View(),
		m.textarea.View())
	return lipgloss.JoinHorizontal(lipgloss.Top,
		logPanelStyle.Render(left),
		metaPanelStyle.Render(m.metaViewport.View()))
}
