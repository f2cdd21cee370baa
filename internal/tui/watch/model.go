// Package watch renders a live dashboard of the local check queue and
// endpoint cooldowns. It is a read-only consumer of the store and the
// cooldown controller.
package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/checks"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/cooldown"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/store"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/ui"
)

// Header is title + stats + cooling line + column captions.
const headerHeight = 4

// Model is the bubbletea model for the watch dashboard.
type Model struct {
	width  int
	height int

	viewport viewport.Model
	keys     KeyMap
	help     help.Model
	showHelp bool

	store     *store.Store
	cooldowns *cooldown.Controller

	profiles    []*store.Profile
	deferred    store.DeferredStats
	report      cooldown.StatusReport
	healthy     bool
	lastRefresh time.Time
}

// NewModel creates a watch model over the given store and controller.
func NewModel(st *store.Store, ctrl *cooldown.Controller) *Model {
	h := help.New()
	h.ShowAll = false

	return &Model{
		viewport:  viewport.New(0, 0),
		keys:      DefaultKeyMap(),
		help:      h,
		store:     st,
		cooldowns: ctrl,
	}
}

// Init initializes the model.
func (m *Model) Init() tea.Cmd {
	m.refresh()
	return tea.Batch(tick(), tea.SetWindowTitle("sip watch"))
}

// tickMsg is sent periodically to refresh the view
type tickMsg time.Time

// tick returns a command for periodic refresh
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh re-reads store and cooldown state.
func (m *Model) refresh() {
	m.profiles = m.store.All()
	m.deferred = m.store.DeferredStats()
	m.report = m.cooldowns.ConnectionStatus()
	m.healthy = m.store.IsHealthy(m.cooldowns)
	m.lastRefresh = time.Now()
	m.updateContent()
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			m.resize()
		case key.Matches(msg, m.keys.Refresh):
			m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.updateContent()

	case tickMsg:
		m.refresh()
		return m, tick()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// resize fits the viewport between header and help footer.
func (m *Model) resize() {
	m.help.Width = m.width

	footer := strings.Count(m.help.View(m.keys), "\n") + 1
	m.viewport.Width = m.width
	m.viewport.Height = m.height - headerHeight - footer
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
}

// View renders the dashboard.
func (m *Model) View() string {
	if m.width < 40 || m.height < 8 {
		return "Terminal too small. Please resize."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// headerView renders the fixed-height dashboard header.
func (m *Model) headerView() string {
	health := ui.Success.Render("● claiming")
	if !m.healthy {
		health = ui.Warning.Render("● waiting")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("sip watch"))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  refreshed %s", m.lastRefresh.Format("15:04:05"))))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s  %d profiles  %d deferred  endpoints %d/%d\n",
		health, len(m.profiles), m.deferred.TotalDeferred,
		m.report.Summary.AvailableConnections, m.report.Summary.TotalConnections)

	b.WriteString(m.coolingLine())
	b.WriteString("\n")

	// Pad before styling so escape codes don't skew the columns.
	captions := fmt.Sprintf("%-18s %-14s %-8s %s", "steam id", "username", "checks", "passed")
	b.WriteString(mutedStyle.Render(captions))
	b.WriteString("\n")
	return b.String()
}

// coolingLine summarizes endpoints currently on cooldown.
func (m *Model) coolingLine() string {
	var parts []string
	for _, e := range cooldown.AllEndpoints() {
		cs, ok := m.report.Connections[e]
		if !ok || cs.Available {
			continue
		}
		remaining := time.Duration(cs.RemainingMS) * time.Millisecond
		parts = append(parts, fmt.Sprintf("%s %s %s",
			e, cs.Reason, remaining.Round(time.Second)))
	}
	if len(parts) == 0 {
		return mutedStyle.Render("no endpoint cooldowns")
	}
	return ui.Warning.Render("cooling: ") + strings.Join(parts, ", ")
}

// updateContent rebuilds the profile list shown in the viewport.
func (m *Model) updateContent() {
	if len(m.profiles) == 0 {
		m.viewport.SetContent(mutedStyle.Render("Queue empty - waiting for claims"))
		return
	}

	all := checks.All()
	var b strings.Builder
	for _, p := range m.profiles {
		var glyphs strings.Builder
		for _, c := range all {
			st := p.Checks[c]
			glyphs.WriteString(ui.StatusStyle(st).Render(ui.StatusGlyph(st)))
		}
		fmt.Fprintf(&b, "%-18s %-14.14s %s  %d/%d\n",
			p.SteamID, p.Username, glyphs.String(),
			p.CountStatus(checks.StatusPassed), len(all))
	}
	m.viewport.SetContent(b.String())
}
