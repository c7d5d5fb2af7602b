package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeolun/roomrelay/pkg/client"
)

// fakeClient records requests and answers them from canned values
type fakeClient struct {
	name       string
	joined     []string
	sent       []string
	rooms      []string
	err        error
	deliveries chan client.Delivery
	done       chan struct{}
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		name:       "rand0",
		deliveries: make(chan client.Delivery, 4),
		done:       make(chan struct{}),
	}
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Join(room string, password *string) error {
	f.joined = append(f.joined, room)
	return f.err
}

func (f *fakeClient) Leave() error { return f.err }
func (f *fakeClient) ListRooms() ([]string, error) { return f.rooms, f.err }
func (f *fakeClient) ListUsers() ([]string, error) { return []string{f.name}, f.err }
func (f *fakeClient) Nick(name string) error { f.name = name; return f.err }
func (f *fakeClient) Deliveries() <-chan client.Delivery { return f.deliveries }
func (f *fakeClient) Done() <-chan struct{} { return f.done }
func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) SendPrivate(target string, body []byte) error {
	f.sent = append(f.sent, "private:"+target+":"+string(body))
	return f.err
}

func (f *fakeClient) SendRoom(room string, body []byte) error {
	f.sent = append(f.sent, "room:"+room+":"+string(body))
	return f.err
}

// enter types line and presses enter, running the resulting command synchronously
func enter(t *testing.T, m Model, line string) Model {
	t.Helper()

	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil {
		return m
	}

	msg := cmd()
	if result, ok := msg.(ResultMsg); ok {
		next, _ = m.Update(result)
		m = next.(Model)
	}
	return m
}

func lastLine(m Model) string {
	lines := m.Lines()
	return lines[len(lines)-1]
}

func TestJoinThenSay(t *testing.T) {
	fc := newFakeClient()
	m := NewModel(fc)

	m = enter(t, m, "hello?")
	assert.Contains(t, lastLine(m), "not in a room")
	assert.Empty(t, fc.sent)

	m = enter(t, m, "/join lobby")
	assert.Equal(t, []string{"lobby"}, fc.joined)
	assert.Equal(t, "lobby", m.Room())

	m = enter(t, m, "hi all")
	assert.Equal(t, []string{"room:lobby:hi all"}, fc.sent)
	assert.Contains(t, lastLine(m), "hi all")
	assert.Empty(t, m.input.Value())
}

func TestFailedJoinKeepsRoom(t *testing.T) {
	fc := newFakeClient()
	m := NewModel(fc)

	fc.err = &client.ResponseError{Text: "Wrong password"}
	m = enter(t, m, "/join lobby nope")

	assert.Equal(t, "", m.Room())
	assert.Contains(t, lastLine(m), "Wrong password")
}

func TestLeaveClearsRoom(t *testing.T) {
	fc := newFakeClient()
	m := NewModel(fc)

	m = enter(t, m, "/join lobby")
	m = enter(t, m, "/leave")
	assert.Equal(t, "", m.Room())
	assert.Contains(t, lastLine(m), "left lobby")
}

func TestListAndNick(t *testing.T) {
	fc := newFakeClient()
	fc.rooms = []string{"a", "b"}
	m := NewModel(fc)

	m = enter(t, m, "/rooms")
	assert.Contains(t, lastLine(m), "a, b")

	m = enter(t, m, "/nick alice")
	assert.Contains(t, lastLine(m), "alice")
	assert.Contains(t, m.View(), "alice")
}

func TestPrivateMessageEcho(t *testing.T) {
	fc := newFakeClient()
	m := NewModel(fc)

	m = enter(t, m, "/msg bob psst")
	assert.Equal(t, []string{"private:bob:psst"}, fc.sent)
	assert.Contains(t, lastLine(m), "bob")
}

func TestDeliveryAndDisconnect(t *testing.T) {
	fc := newFakeClient()
	m := NewModel(fc)

	fc.deliveries <- client.Delivery{Room: "lobby", Sender: "bob", Body: []byte("yo")}
	msg := listenForDeliveries(fc)()
	next, cmd := m.Update(msg)
	m = next.(Model)
	assert.NotNil(t, cmd, "listening continues after a delivery")
	assert.Contains(t, lastLine(m), "yo")

	close(fc.deliveries)
	msg = listenForDeliveries(fc)()
	require.IsType(t, DisconnectedMsg{}, msg)
	next, _ = m.Update(msg)
	m = next.(Model)
	assert.True(t, strings.Contains(m.View(), "disconnected"))
}

func TestQuitCommand(t *testing.T) {
	m := NewModel(newFakeClient())

	m.input.SetValue("/quit")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestUnknownCommandShowsError(t *testing.T) {
	m := NewModel(newFakeClient())

	m = enter(t, m, "/dance")
	assert.Contains(t, lastLine(m), "unknown command")
}

func TestRequestErrorShown(t *testing.T) {
	fc := newFakeClient()
	fc.err = errors.New("connection closed")
	m := NewModel(fc)

	m = enter(t, m, "/rooms")
	assert.Contains(t, lastLine(m), "connection closed")
}
