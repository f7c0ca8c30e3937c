// Package tui renders the device table and pool ring in a terminal and
// hosts the reservation dialog.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"dhcpdash/internal/feed"
	"dhcpdash/internal/logger"
	"dhcpdash/internal/reservation"
)

const (
	defaultRefreshInterval = 30 * time.Second
	defaultWidth           = 100
	defaultHeight          = 30
	poolBarWidth           = 40

	dialogTitle = "Add Media Access Control Addresses"
	dialogHint  = "Please enter valid MAC addresses, one per line"
	failureText = "There was an error adding MACs. [%s]"
)

// DeviceSource provides the device table view
type DeviceSource interface {
	View() feed.State[feed.DeviceTableView]
	Subscribe() (<-chan feed.State[feed.DeviceTableView], func())
	Location() *time.Location
}

// PoolSource provides the pool chart view
type PoolSource interface {
	View() feed.State[feed.PoolView]
	Subscribe() (<-chan feed.State[feed.PoolView], func())
}

// deviceStateMsg carries a new device view from the subscription
type deviceStateMsg struct {
	state feed.State[feed.DeviceTableView]
}

// poolStateMsg carries a new pool view from the subscription
type poolStateMsg struct {
	state feed.State[feed.PoolView]
}

// refreshMsg re-renders expiry columns against the current time
type refreshMsg time.Time

// submitResultMsg is sent when a reservation submission completes
type submitResultMsg struct {
	ticket reservation.Ticket
	err    error
}

// subscriptions holds the release functions of both feed channels
type subscriptions struct {
	devices <-chan feed.State[feed.DeviceTableView]
	pool    <-chan feed.State[feed.PoolView]
	release []func()
}

// Option configures a Model
type Option func(*Model)

// WithClock sets the time source used to refresh expiry columns
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// WithRefreshInterval sets how often expiry columns are recomputed
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Model) { m.refresh = d }
}

// WithKeyMap replaces the key bindings
func WithKeyMap(k KeyMap) Option {
	return func(m *Model) { m.keys = k }
}

// Model is the bubbletea model of the dashboard
type Model struct {
	deviceSource DeviceSource
	poolSource   PoolSource
	subs         *subscriptions

	devices feed.State[feed.DeviceTableView]
	pool    feed.State[feed.PoolView]

	table  table.Model
	editor textarea.Model
	dialog *reservation.Dialog

	// failure is the report awaiting acknowledgment, if any
	failure string
	notice  string

	keys    KeyMap
	now     func() time.Time
	refresh time.Duration
	logger  zerolog.Logger

	width  int
	height int
}

// New creates the dashboard model and subscribes to both feeds. Close
// releases the subscriptions.
func New(devices DeviceSource, pool PoolSource, submitter reservation.Submitter, opts ...Option) Model {
	editor := textarea.New()
	editor.Placeholder = "ab:34:ef:12:34:aa"
	editor.ShowLineNumbers = true
	editor.CharLimit = 0

	tbl := table.New(
		table.WithColumns(columns(defaultWidth)),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderStyle(lipgloss.NormalBorder()).BorderBottom(true)
	tbl.SetStyles(styles)

	m := Model{
		deviceSource: devices,
		poolSource:   pool,
		table:        tbl,
		editor:       editor,
		dialog:       reservation.NewDialog(submitter),
		keys:         DefaultKeyMap,
		now:          time.Now,
		refresh:      defaultRefreshInterval,
		logger:       logger.WithComponent("tui"),
		width:        defaultWidth,
		height:       defaultHeight,
	}
	for _, opt := range opts {
		opt(&m)
	}

	deviceCh, releaseDevices := devices.Subscribe()
	poolCh, releasePool := pool.Subscribe()
	m.subs = &subscriptions{
		devices: deviceCh,
		pool:    poolCh,
		release: []func(){releaseDevices, releasePool},
	}

	m.devices = devices.View()
	m.pool = pool.View()
	m.rebuildRows()
	m.resize()
	return m
}

// Close releases both feed subscriptions
func (m Model) Close() {
	for _, release := range m.subs.release {
		release()
	}
}

// Init implements tea.Model. Starts listening on both feeds and the
// expiry refresh timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		listenForDevices(m.subs.devices),
		listenForPool(m.subs.pool),
		m.scheduleRefresh(),
	)
}

// listenForDevices returns a tea.Cmd that blocks until the device view
// changes, then delivers it as a deviceStateMsg
func listenForDevices(ch <-chan feed.State[feed.DeviceTableView]) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return deviceStateMsg{state: st}
	}
}

// listenForPool is listenForDevices for the pool view
func listenForPool(ch <-chan feed.State[feed.PoolView]) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return nil
		}
		return poolStateMsg{state: st}
	}
}

func (m Model) scheduleRefresh() tea.Cmd {
	if m.refresh <= 0 {
		return nil
	}
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// submit runs the submission off the update loop. The outcome comes back
// as a submitResultMsg tagged with the dialog ticket.
func (m Model) submit() tea.Cmd {
	ticket, batch := m.dialog.Begin()
	dialog := m.dialog
	return func() tea.Msg {
		return submitResultMsg{ticket: ticket, err: dialog.Submit(context.Background(), batch)}
	}
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case deviceStateMsg:
		m.devices = msg.state
		m.rebuildRows()
		return m, listenForDevices(m.subs.devices)

	case poolStateMsg:
		m.pool = msg.state
		return m, listenForPool(m.subs.pool)

	case refreshMsg:
		m.rebuildRows()
		return m, m.scheduleRefresh()

	case submitResultMsg:
		return m.handleSubmitResult(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.dialog.IsOpen() {
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// A failure report blocks all other input until acknowledged.
	if m.failure != "" {
		if key.Matches(msg, m.keys.Acknowledge) {
			m.failure = ""
		}
		return m, nil
	}

	if m.dialog.IsOpen() {
		switch {
		case key.Matches(msg, m.keys.Close):
			m.dialog.Close()
			m.editor.Blur()
			return m, nil

		case key.Matches(msg, m.keys.Save):
			if m.dialog.Pending() {
				return m, nil
			}
			m.notice = "Saving…"
			return m, m.submit()
		}

		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		if v := m.editor.Value(); v != m.dialog.Text() {
			m.dialog.SetText(v)
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Add):
		m.dialog.Open()
		m.editor.Reset()
		m.notice = ""
		return m, m.editor.Focus()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// handleSubmitResult reconciles a finished submission. Success closes the
// dialog and leaves both views alone; the next feed push shows the result.
func (m Model) handleSubmitResult(msg submitResultMsg) Model {
	outcome := m.dialog.Complete(msg.ticket, msg.err)
	switch outcome.Kind {
	case reservation.Dismissed:
		m.editor.Blur()
		m.notice = "Reservation submitted"
	case reservation.Failed:
		m.notice = ""
		m.failure = fmt.Sprintf(failureText, outcome.Message)
	case reservation.Discarded:
		m.logger.Debug().Err(outcome.Err).Msg("Discarding result of dismissed submission")
	}
	return m
}

// rebuildRows reprojects the table from the records of the current view
// so that expiry columns follow the clock
func (m *Model) rebuildRows() {
	rows := m.devices.Data.Rows
	if len(m.devices.Data.Records) > 0 {
		fresh, err := feed.ProjectDevices(m.devices.Data.Records, m.now(), m.deviceSource.Location())
		if err == nil {
			rows = fresh
		}
	}

	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, table.Row{
			r.Hostname,
			r.Address,
			r.HardwareAddr,
			r.Expires,
			colorStyle(r.Category.Color).Render("● " + r.State.String()),
		})
	}
	m.table.SetRows(out)
}

func columns(width int) []table.Column {
	hostname := width - 17 - 19 - 14 - 12 - 10
	if hostname < 12 {
		hostname = 12
	}
	return []table.Column{
		{Title: "Hostname", Width: hostname},
		{Title: "IP", Width: 17},
		{Title: "MAC", Width: 19},
		{Title: "Expires", Width: 14},
		{Title: "State", Width: 12},
	}
}

func (m *Model) resize() {
	m.table.SetColumns(columns(m.width))
	// title, pool, blank, help and table header
	tableHeight := m.height - 7
	if tableHeight < 3 {
		tableHeight = 3
	}
	m.table.SetHeight(tableHeight)

	m.editor.SetWidth(max(m.width-6, 20))
	m.editor.SetHeight(max(m.height-10, 5))
}

// View implements tea.Model
func (m Model) View() string {
	if m.failure != "" {
		return m.place(failureStyle.Render(
			staleStyle.Render(m.failure) + "\n\n" + helpStyle.Render(helpLine(m.keys.Acknowledge))))
	}
	if m.dialog.IsOpen() {
		return m.dialogView()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("DHCP allocations"))
	b.WriteString(" ")
	b.WriteString(feedStatus(m.devices.Empty(), m.devices.Stale, m.devices.LastError, m.devices.ReceivedAt))
	b.WriteString("\n")

	b.WriteString(renderPoolBar(m.pool.Data.Chart, poolBarWidth))
	b.WriteString(" ")
	b.WriteString(feedStatus(m.pool.Empty(), m.pool.Stale, m.pool.LastError, m.pool.ReceivedAt))
	b.WriteString("\n\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	help := helpLine(m.keys.Up, m.keys.Down, m.keys.Add, m.keys.Quit)
	if m.notice != "" {
		help = m.notice + "  " + help
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m Model) dialogView() string {
	footer := helpLine(m.keys.Save, m.keys.Close)
	if m.dialog.Pending() {
		footer = "Saving…  " + footer
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(dialogTitle),
		"",
		subtleStyle.Render(dialogHint),
		m.editor.View(),
		helpStyle.Render(footer),
	)
	return panelStyle.Width(max(m.width-2, 20)).Render(body)
}

func (m Model) place(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

// feedStatus describes the freshness of one view
func feedStatus(empty, stale bool, lastError string, receivedAt time.Time) string {
	switch {
	case stale && lastError != "":
		return staleStyle.Render("stale: " + lastError)
	case stale:
		return staleStyle.Render("stale")
	case empty:
		return subtleStyle.Render("waiting for data…")
	}
	return subtleStyle.Render("updated " + receivedAt.Format("15:04:05"))
}
