package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aeolun/roomrelay/pkg/client"
)

// maxLines bounds the scrollback kept in memory
const maxLines = 1000

// DeliveryMsg carries a message pushed by the server
type DeliveryMsg client.Delivery

// DisconnectedMsg is sent when the server connection ends
type DisconnectedMsg struct{}

// ResultMsg is the outcome of one request run off the UI goroutine
type ResultMsg struct {
	Cmd   Command
	Items []string
	Err   error
}

// Model is the bubbletea model of the chat client
type Model struct {
	client   client.ChatClient
	input    textinput.Model
	viewport viewport.Model

	lines        []string
	room         *string
	name         string
	width        int
	height       int
	disconnected bool
}

// NewModel creates a model around a connected client
func NewModel(c client.ChatClient) Model {
	input := textinput.New()
	input.Placeholder = "type a message or /help"
	input.CharLimit = 2048
	input.Focus()

	m := Model{
		client:   c,
		input:    input,
		viewport: viewport.New(80, 20),
		name:     c.Name(),
	}
	m.appendLine(SystemStyle.Render(fmt.Sprintf("connected as %s. /help for commands", m.name)))
	return m
}

// Init starts the cursor blink and the delivery listener
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForDeliveries(m.client))
}

// Room returns the current room, or "" when not in one
func (m Model) Room() string {
	if m.room == nil {
		return ""
	}
	return *m.room
}

// Lines returns the scrollback
func (m Model) Lines() []string {
	return m.lines
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-3, 1) // header, input, status
		m.input.Width = max(msg.Width-4, 10)
		m.refreshViewport()
		return m, nil

	case DeliveryMsg:
		m.appendLine(formatDelivery(client.Delivery(msg)))
		return m, listenForDeliveries(m.client)

	case DisconnectedMsg:
		m.disconnected = true
		m.input.Blur()
		m.appendLine(ErrorStyle.Render("disconnected from server (press esc to exit)"))
		return m, nil

	case ResultMsg:
		m.handleResult(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		if m.disconnected {
			return m, nil
		}
		line := m.input.Value()
		m.input.SetValue("")
		return m.submit(line)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit parses an input line and starts the request it names
func (m Model) submit(line string) (tea.Model, tea.Cmd) {
	cmd, err := ParseInput(line)
	if err != nil {
		if !errors.Is(err, ErrEmptyInput) {
			m.appendLine(ErrorStyle.Render(err.Error()))
		}
		return m, nil
	}

	switch cmd.Kind {
	case CmdQuit:
		return m, tea.Quit
	case CmdHelp:
		m.appendLine(SystemStyle.Render(helpText))
		return m, nil
	case CmdSay:
		if m.room == nil {
			m.appendLine(ErrorStyle.Render("you are not in a room (/join <room>)"))
			return m, nil
		}
		cmd.Room = *m.room
	}

	return m, execute(m.client, cmd)
}

func (m *Model) handleResult(msg ResultMsg) {
	cmd := msg.Cmd
	if msg.Err != nil {
		m.appendLine(ErrorStyle.Render(msg.Err.Error()))
		return
	}

	switch cmd.Kind {
	case CmdJoin:
		room := cmd.Room
		m.room = &room
		m.appendLine(SystemStyle.Render("joined " + room))
	case CmdLeave:
		if m.room == nil {
			m.appendLine(SystemStyle.Render("left the server"))
			return
		}
		m.appendLine(SystemStyle.Render("left " + *m.room))
		m.room = nil
	case CmdRooms:
		m.appendLine(SystemStyle.Render(fmt.Sprintf("rooms (%d): %s", len(msg.Items), strings.Join(msg.Items, ", "))))
	case CmdUsers:
		m.appendLine(SystemStyle.Render(fmt.Sprintf("users (%d): %s", len(msg.Items), strings.Join(msg.Items, ", "))))
	case CmdNick:
		m.name = cmd.Text
		m.appendLine(SystemStyle.Render("you are now " + cmd.Text))
	case CmdMsg:
		m.appendLine(PrivateStyle.Render(fmt.Sprintf("-> %s: %s", cmd.Target, cmd.Text)))
	case CmdSay:
		m.appendLine(fmt.Sprintf("%s %s: %s", RoomTagStyle.Render("["+cmd.Room+"]"), SenderStyle.Render(m.name), cmd.Text))
	}
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLines {
		m.lines = m.lines[len(m.lines)-maxLines:]
	}
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
	m.viewport.GotoBottom()
}

// View renders the UI
func (m Model) View() string {
	header := HeaderStyle.Render("roomrelay")
	status := m.name
	if m.room != nil {
		status += " in " + *m.room
	}
	if m.disconnected {
		status += " (disconnected)"
	}

	return header + StatusStyle.Render(status) + "\n" +
		m.viewport.View() + "\n" +
		m.input.View()
}

func formatDelivery(d client.Delivery) string {
	if d.Private {
		return PrivateStyle.Render(fmt.Sprintf("<- %s: %s", d.Sender, d.Body))
	}
	return fmt.Sprintf("%s %s: %s", RoomTagStyle.Render("["+d.Room+"]"), SenderStyle.Render(d.Sender), d.Body)
}

// listenForDeliveries waits for the next pushed message
func listenForDeliveries(c client.ChatClient) tea.Cmd {
	return func() tea.Msg {
		d, ok := <-c.Deliveries()
		if !ok {
			return DisconnectedMsg{}
		}
		return DeliveryMsg(d)
	}
}

// execute runs a request as a tea.Cmd so the UI never blocks on the network
func execute(c client.ChatClient, cmd Command) tea.Cmd {
	return func() tea.Msg {
		result := ResultMsg{Cmd: cmd}
		switch cmd.Kind {
		case CmdJoin:
			result.Err = c.Join(cmd.Room, cmd.Password)
		case CmdLeave:
			result.Err = c.Leave()
		case CmdRooms:
			result.Items, result.Err = c.ListRooms()
		case CmdUsers:
			result.Items, result.Err = c.ListUsers()
		case CmdNick:
			result.Err = c.Nick(cmd.Text)
		case CmdMsg:
			result.Err = c.SendPrivate(cmd.Target, []byte(cmd.Text))
		case CmdSay:
			result.Err = c.SendRoom(cmd.Room, []byte(cmd.Text))
		}
		return result
	}
}
