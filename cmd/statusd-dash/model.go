package main

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"statusd/pkg/protocol"
)

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic status refresh from the in-process daemon.
type tickMsg time.Time

// statusMsg carries one fetched status.
type statusMsg *protocol.Status

// fetchErrMsg carries a fetch failure.
type fetchErrMsg struct{ err error }

// fetchTimeout bounds one status round trip; an abandoned request never
// answers, so the fetch has to give up on its own.
const fetchTimeout = 5 * time.Second

// tickCmd returns a command that sends a tickMsg after 2 seconds.
func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchCmd returns a tea.Cmd that fetches the status of dir.
func fetchCmd(c *client, dir string) tea.Cmd {
	return func() tea.Msg {
		status, err := c.fetch(dir, fetchTimeout)
		if err != nil {
			return fetchErrMsg{err: err}
		}
		return statusMsg(status)
	}
}

// Model is the Bubble Tea model for the statusd dashboard.
type Model struct {
	dir    string
	client *client

	status      *protocol.Status
	fetchErr    error
	lastUpdated time.Time

	spinner spinner.Model
	loading bool

	width  int
	height int
}

// newModel creates a Model watching dir.
func newModel(dir string, c *client) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{
		dir:     dir,
		client:  c,
		spinner: sp,
		loading: true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.client, m.dir), m.spinner.Tick, tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, fetchCmd(m.client, m.dir)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case statusMsg:
		m.status = (*protocol.Status)(msg)
		m.fetchErr = nil
		m.loading = false
		m.lastUpdated = time.Now()

	case fetchErrMsg:
		m.fetchErr = msg.err
		m.loading = false

	case tickMsg:
		m.loading = true
		return m, tea.Batch(fetchCmd(m.client, m.dir), tickCmd())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}
