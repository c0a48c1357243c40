package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jukebox/internal/client"
	"github.com/desertthunder/jukebox/internal/models"
	"github.com/desertthunder/jukebox/internal/shared"
)

// ViewState represents the current tab in the TUI.
type ViewState int

const (
	QueueView ViewState = iota
	PendingView
	RejectedView
)

var viewTitles = [...]string{QueueView: "Queue", PendingView: "Pending", RejectedView: "Rejected"}

func (v ViewState) String() string { return viewTitles[v] }

// Actions are the owner operations the console performs against the server.
//
// [services.APIService] satisfies it.
type Actions interface {
	ReviewSong(ctx context.Context, id int64, approved bool) error
	ResetRejectedSong(ctx context.Context, id int64) error
	SetPlaying(ctx context.Context, id int64) error
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	store       *client.Store
	actions     Actions
	changes     chan struct{}
	unsubscribe client.Unsubscribe
	width       int
	height      int
	lists       [len(viewTitles)]list.Model
	status      string
	err         error
	help        help.Model
	keys        keyMap
}

// NewModel creates a new TUI model for the owner of store.
func NewModel(ctx context.Context, store *client.Store, actions Actions) *Model {
	m := &Model{
		ctx:     ctx,
		view:    QueueView,
		store:   store,
		actions: actions,
		changes: make(chan struct{}, 1),
		help:    help.New(),
		keys:    newKeyMap(),
	}
	for v := range m.lists {
		l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
		l.Title = viewTitles[v]
		l.SetShowHelp(false)
		l.SetShowTitle(false)
		l.DisableQuitKeybindings()
		m.lists[v] = l
	}
	store.OnChange(func() {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	return m
}

// Init subscribes the store to the owner's change feed.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.subscribe(), m.waitForChange())
}

// Close releases the store subscription.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for v := range m.lists {
			m.lists[v].SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.lists[m.view], cmd = m.lists[m.view].Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSubscribed:
		data := msg.data.(subscribed)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.unsubscribe = data.unsubscribe
		m.refresh()
		return m, nil

	case MsgStoreChanged:
		m.refresh()
		return m, m.waitForChange()

	case MsgActionDone:
		data := msg.data.(actionDone)
		if data.err != nil {
			m.status = styles.err.Render(fmt.Sprintf("%s failed: %v", data.label, data.err))
		} else {
			m.status = data.label
		}
		return m, nil

	case MsgAdvanced:
		data := msg.data.(advanced)
		switch {
		case errors.Is(data.err, shared.ErrEndOfQueue):
			m.status = styles.warn.Render("End of queue")
		case data.err != nil:
			m.status = styles.err.Render(fmt.Sprintf("next failed: %v", data.err))
		default:
			m.status = fmt.Sprintf("Playing %s", data.request.SongTitle)
			m.refresh()
		}
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Jukebox • %s", m.store.OwnerID())))
	b.WriteString("\n")
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")
	b.WriteString(m.lists[m.view].View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.status)
		b.WriteString("\n")
	}
	b.WriteString(m.help.ShortHelpView(m.keys.forView(m.view)))
	return b.String()
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.lists[m.view].FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.lists[m.view], cmd = m.lists[m.view].Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.nextTab):
		m.view = (m.view + 1) % ViewState(len(m.lists))
		return m, nil
	case key.Matches(msg, m.keys.prevTab):
		m.view = (m.view + ViewState(len(m.lists)) - 1) % ViewState(len(m.lists))
		return m, nil
	case key.Matches(msg, m.keys.next):
		if m.view == QueueView {
			return m, m.advance()
		}
	case key.Matches(msg, m.keys.approve):
		if r, ok := m.selected(); ok && m.view != QueueView {
			return m, m.review(r, true)
		}
	case key.Matches(msg, m.keys.reject):
		if r, ok := m.selected(); ok && m.view != RejectedView {
			return m, m.review(r, false)
		}
	case key.Matches(msg, m.keys.reset):
		if r, ok := m.selected(); ok && m.view == RejectedView {
			return m, m.reset(r)
		}
	case key.Matches(msg, m.keys.play):
		if r, ok := m.selected(); ok && m.view == QueueView {
			return m, m.play(r)
		}
	}

	var cmd tea.Cmd
	m.lists[m.view], cmd = m.lists[m.view].Update(msg)
	return m, cmd
}

func (m *Model) selected() (models.RequestSong, bool) {
	item, ok := m.lists[m.view].SelectedItem().(requestItem)
	if !ok {
		return models.RequestSong{}, false
	}
	return item.request, true
}

// refresh rebuilds every tab from the store.
func (m *Model) refresh() {
	var playingID int64
	if r, ok := m.store.NowPlaying(); ok {
		playingID = r.ID
	}
	m.lists[QueueView].SetItems(requestItems(m.store.DerivedApprovedQueue(), playingID))
	m.lists[PendingView].SetItems(requestItems(m.store.Pending(), 0))
	m.lists[RejectedView].SetItems(requestItems(m.store.Rejected(), 0))
}

func (m *Model) subscribe() tea.Cmd {
	return func() tea.Msg {
		unsubscribe, err := m.store.Subscribe(m.ctx)
		return subscribedMsg(unsubscribe, err)
	}
}

func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.changes:
			return storeChangedMsg()
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m *Model) review(r models.RequestSong, approved bool) tea.Cmd {
	label := fmt.Sprintf("Rejected %s", r.SongTitle)
	if approved {
		label = fmt.Sprintf("Approved %s", r.SongTitle)
	}
	return func() tea.Msg {
		return actionDoneMsg(label, m.actions.ReviewSong(m.ctx, r.ID, approved))
	}
}

func (m *Model) reset(r models.RequestSong) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(fmt.Sprintf("Reset %s", r.SongTitle), m.actions.ResetRejectedSong(m.ctx, r.ID))
	}
}

func (m *Model) play(r models.RequestSong) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(fmt.Sprintf("Playing %s", r.SongTitle), m.actions.SetPlaying(m.ctx, r.ID))
	}
}

func (m *Model) advance() tea.Cmd {
	return func() tea.Msg {
		r, err := m.store.Advance(m.ctx)
		return advancedMsg(r, err)
	}
}

func (m *Model) renderNowPlaying() string {
	r, ok := m.store.NowPlaying()
	if !ok {
		return styles.help.Render("Nothing playing")
	}
	return styles.playing.Render(fmt.Sprintf("▶ %s - %s [%s]", r.ArtistName, r.SongTitle, r.PlayTime))
}

func (m *Model) renderTabs() string {
	tabs := make([]string, len(m.lists))
	for v := range m.lists {
		label := fmt.Sprintf("%s (%d)", viewTitles[v], len(m.lists[v].Items()))
		if ViewState(v) == m.view {
			tabs[v] = styles.activeTab.Render(label)
		} else {
			tabs[v] = styles.tab.Render(label)
		}
	}
	return strings.Join(tabs, " ")
}
