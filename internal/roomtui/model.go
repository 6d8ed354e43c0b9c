// Package roomtui is the terminal view of one chat room: the message list,
// the compose box and the connection status.
package roomtui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/roomchat/internal/chat"
	"github.com/tOgg1/roomchat/internal/roomtui/styles"
)

const (
	inputHeight  = 3
	chromeHeight = 2 // header + help line
)

// Options configures the room view.
type Options struct {
	Client         *chat.Client
	RoomID         string
	Theme          string
	ShowTimestamps bool
}

type sessionUpdateMsg struct {
	session *chat.Session
	update  chat.Update
}

type sessionDoneMsg struct {
	session *chat.Session
}

type sendResultMsg struct {
	session *chat.Session
	draft   string
	err     error
}

type enterResultMsg struct {
	roomID  string
	session *chat.Session
	err     error
}

// Model is the bubbletea model for the room view.
type Model struct {
	ctx    context.Context
	client *chat.Client

	session *chat.Session
	roomID  string

	theme          styles.Theme
	msgStyles      styles.MessageStyles
	showTimestamps bool

	viewport viewport.Model
	input    textarea.Model

	width  int
	height int

	lastCount int
	// opened is set once the current session's live channel has been open.
	opened bool

	historyBanner string
	connBanner    string
	notice        string
	noticeErr     bool
}

// NewModel builds the view. The room is entered by Init.
func NewModel(ctx context.Context, opts Options) *Model {
	theme := styles.Lookup(opts.Theme)

	input := textarea.New()
	input.Placeholder = "Type a message. Enter sends, /join <room> switches rooms."
	input.CharLimit = 0
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.Prompt = "› "
	input.Focus()

	return &Model{
		ctx:            ctx,
		client:         opts.Client,
		roomID:         strings.TrimSpace(opts.RoomID),
		theme:          theme,
		msgStyles:      styles.NewMessageStyles(theme),
		showTimestamps: opts.ShowTimestamps,
		viewport:       viewport.New(0, 0),
		input:          input,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.enterCmd(m.roomID))
}

// Session returns the active session, if any.
func (m *Model) Session() *chat.Session {
	return m.session
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refresh()
		return m, nil

	case enterResultMsg:
		return m, m.applyEnter(msg)

	case sessionUpdateMsg:
		if msg.session != m.session {
			return m, nil
		}
		m.applyUpdate(msg.update)
		return m, waitForUpdate(m.session)

	case sessionDoneMsg:
		return m, nil

	case sendResultMsg:
		m.applySendResult(msg)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.closeSession()
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	header := m.renderHeader()
	lines := []string{header, m.viewport.View()}
	for _, banner := range m.banners() {
		lines = append(lines, banner)
	}
	lines = append(lines, m.theme.InputStyle().Render(m.input.View()))
	lines = append(lines, m.theme.Footer().Render("enter send · pgup/pgdn scroll · /join <room> · /reload · esc quit"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderHeader() string {
	room := m.roomID
	if room == "" {
		room = "-"
	}
	state := "closed"
	identity := ""
	if m.session != nil {
		state = m.session.State().String()
		identity = m.session.Identity().Name
	}
	left := m.theme.Header().Render("#" + room)
	if identity != "" {
		left += m.theme.Muted().Render(" · " + identity)
	}
	return left + m.theme.Muted().Render(" · ") + m.theme.StatusStyle(state).Render(state)
}

func (m *Model) banners() []string {
	var out []string
	if m.connBanner != "" {
		out = append(out, m.theme.Banner().Render(m.connBanner))
	}
	if m.historyBanner != "" {
		out = append(out, m.theme.Banner().Render(m.historyBanner))
	}
	if m.notice != "" {
		if m.noticeErr {
			out = append(out, m.theme.Banner().Render(m.notice))
		} else {
			out = append(out, m.theme.Notice().Render(m.notice))
		}
	}
	return out
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.input.SetWidth(maxInt(10, m.width-2))
	reserved := chromeHeight + inputHeight + 2 + len(m.banners())
	m.viewport.Width = m.width
	m.viewport.Height = maxInt(1, m.height-reserved)
}

// refresh re-renders the message list. The view follows the newest message
// whenever the count grows.
func (m *Model) refresh() {
	if m.session == nil {
		m.viewport.SetContent("")
		m.lastCount = 0
		return
	}
	msgs := m.session.Messages()
	m.viewport.SetContent(renderMessages(m.msgStyles, m.session.Identity(), msgs, m.viewport.Width, m.showTimestamps))
	if len(msgs) > m.lastCount {
		m.viewport.GotoBottom()
	}
	m.lastCount = len(msgs)
}

// applyUpdate re-reads banner state from the session on every notification;
// notifications may be dropped, so u is not trusted to carry the change.
func (m *Model) applyUpdate(chat.Update) {
	m.syncBanners()
	m.resize()
	m.refresh()
}

func (m *Model) syncBanners() {
	if m.session == nil {
		m.historyBanner, m.connBanner = "", ""
		return
	}
	m.historyBanner = historyBanner(m.session.History())
	state := m.session.State()
	if state == chat.StateOpen {
		m.opened = true
	}
	if state == chat.StateConnecting && !m.opened {
		m.connBanner = ""
		return
	}
	m.connBanner = connectionBanner(state, m.session.ConnErr())
}

func (m *Model) submit() tea.Cmd {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if cmd, ok := parseCommand(text); ok {
		return m.runCommand(cmd)
	}
	if strings.HasPrefix(text, "//") {
		text = text[1:]
	}
	if m.session == nil {
		m.setNotice("not in a room; use /join <room>", true)
		return nil
	}
	session := m.session
	return func() tea.Msg {
		return sendResultMsg{session: session, draft: raw, err: session.Send(text)}
	}
}

// applySendResult clears the compose box only after a successful send, and
// only if it still holds what was sent.
func (m *Model) applySendResult(msg sendResultMsg) {
	if msg.err != nil {
		m.setNotice(sendErrorText(msg.err), true)
		return
	}
	if m.input.Value() == msg.draft {
		m.input.Reset()
	}
	m.setNotice("", false)
}

func (m *Model) runCommand(cmd command) tea.Cmd {
	switch cmd.name {
	case "join":
		if cmd.arg == "" {
			m.setNotice("usage: /join <room>", true)
			return nil
		}
		m.input.Reset()
		m.setNotice("joining #"+cmd.arg+"...", false)
		return m.enterCmd(cmd.arg)
	case "reload":
		m.input.Reset()
		if m.session == nil {
			m.setNotice("not in a room", true)
			return nil
		}
		if err := m.session.ReloadHistory(); err != nil {
			m.setNotice(err.Error(), true)
			return nil
		}
		m.setNotice("reloading history...", false)
		return nil
	case "quit":
		m.closeSession()
		return tea.Quit
	default:
		m.setNotice(fmt.Sprintf("unknown command /%s", cmd.name), true)
		return nil
	}
}

func (m *Model) enterCmd(roomID string) tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		if client == nil {
			return enterResultMsg{roomID: roomID, err: errors.New("no chat client")}
		}
		s, err := client.Enter(ctx, roomID)
		return enterResultMsg{roomID: roomID, session: s, err: err}
	}
}

func (m *Model) applyEnter(msg enterResultMsg) tea.Cmd {
	if msg.err != nil {
		m.setNotice(fmt.Sprintf("cannot join %q: %v", msg.roomID, msg.err), true)
		return nil
	}
	m.session = msg.session
	m.roomID = msg.session.RoomID()
	m.lastCount = 0
	m.opened = false
	m.syncBanners()
	m.setNotice("", false)
	m.resize()
	m.refresh()
	return waitForUpdate(m.session)
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.resize()
}

func (m *Model) closeSession() {
	if m.client != nil {
		_ = m.client.Leave()
	}
}

func waitForUpdate(s *chat.Session) tea.Cmd {
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case u := <-s.Updates():
			return sessionUpdateMsg{session: s, update: u}
		case <-s.Done():
			return sessionDoneMsg{session: s}
		}
	}
}

func historyBanner(status chat.HistoryStatus) string {
	if status.State != chat.HistoryFailed || status.Err == nil {
		return ""
	}
	if errors.Is(status.Err, chat.ErrUnauthenticated) {
		return "history unavailable: not signed in (run `roomchat login`)"
	}
	return "history unavailable: " + status.Err.Error()
}

func connectionBanner(state chat.ConnState, err error) string {
	switch state {
	case chat.StateOpen:
		return ""
	case chat.StateConnecting:
		return "reconnecting..."
	default:
		if err != nil {
			return "disconnected: " + err.Error()
		}
		return "disconnected"
	}
}

func sendErrorText(err error) string {
	switch {
	case errors.Is(err, chat.ErrNotOpen):
		return "not connected; message kept"
	case errors.Is(err, chat.ErrClosed):
		return "room closed; message kept"
	default:
		return "send failed: " + err.Error()
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
