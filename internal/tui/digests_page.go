package tui

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/report"
)

const (
	DigestsPageID = "digests"
	SummaryPageID = "summary"

	// chromeHeight is the header plus status line.
	chromeHeight = 2
	// minQueryColumn is the narrowest the Query column is allowed to get.
	minQueryColumn = 20
)

// fixedColumns are every column except Query, which takes the rest.
var fixedColumns = []table.Column{
	{Title: "Rank", Width: 4},
	{Title: "Count", Width: 9},
	{Title: "Total", Width: 10},
	{Title: "Mean", Width: 9},
	{Title: "P95", Width: 9},
	{Title: "Share", Width: 6},
	{Title: "Query ID", Width: 16},
}

// digestsLoadedMsg carries the result of a TopDigests fetch.
type digestsLoadedMsg struct {
	metric string
	rows   []model.DigestRow
	err    error
}

// DigestsPage lists the top digests in a table and opens a detail modal for
// the selected row.
type DigestsPage struct {
	modalStack

	store     model.ReadAPI
	keys      KeyMap
	help      help.Model
	spinner   spinner.Model
	table     table.Model
	loc       *time.Location
	limit     int
	metrics   []string
	metricIdx int

	rows    []model.DigestRow
	loading bool
	err     error

	width    int
	height   int
	queryCol int
}

// NewDigestsPage creates the digest list page. limit bounds each fetch and
// metric is the initial ranking metric.
func NewDigestsPage(store model.ReadAPI, limit int, metric string, loc *time.Location) *DigestsPage {
	if limit <= 0 {
		limit = model.DefaultLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	metrics := digest.Metrics()
	idx := 0
	for i, m := range metrics {
		if m == metric {
			idx = i
		}
	}

	cols := columnsFor(80)
	t := table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorGray).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(ColorWhite).
		Background(ColorNavy).
		Bold(true)
	t.SetStyles(styles)

	return &DigestsPage{
		store:     store,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   newSpinner(),
		table:     t,
		loc:       loc,
		limit:     limit,
		metrics:   metrics,
		metricIdx: idx,
		queryCol:  cols[len(cols)-1].Width,
	}
}

func (p *DigestsPage) ID() string { return DigestsPageID }

func (p *DigestsPage) Init() tea.Cmd {
	return p.reload()
}

// Metric returns the current ranking metric.
func (p *DigestsPage) Metric() string { return p.metrics[p.metricIdx] }

func (p *DigestsPage) reload() tea.Cmd {
	p.loading = true
	return tea.Batch(p.fetch(), p.spinner.Tick)
}

// fetch queries the store off the UI goroutine.
func (p *DigestsPage) fetch() tea.Cmd {
	store, limit, metric := p.store, p.limit, p.Metric()
	return func() tea.Msg {
		if store == nil {
			return digestsLoadedMsg{metric: metric, err: fmt.Errorf("no digest store")}
		}
		rows, err := store.TopDigests(limit, metric)
		return digestsLoadedMsg{metric: metric, rows: rows, err: err}
	}
}

func (p *DigestsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.resize(msg.Width, msg.Height)
		return nil, nil

	case digestsLoadedMsg:
		// A fetch for a metric we have since moved away from.
		if msg.metric != p.Metric() {
			return nil, nil
		}
		p.loading = false
		p.err = msg.err
		p.rows = msg.rows
		p.table.SetRows(p.tableRows())
		p.table.GotoTop()
		return nil, nil

	case spinner.TickMsg:
		if !p.loading {
			return nil, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd, nil

	case tea.MouseMsg:
		if p.top() != nil {
			return p.updateTop(msg), nil
		}
		return nil, nil

	case tea.KeyMsg:
		if key.Matches(msg, p.keys.ForceQuit) {
			return tea.Quit, nil
		}
		if p.top() != nil {
			return p.updateTop(msg), nil
		}
		return p.handleKey(msg)
	}
	return nil, nil
}

func (p *DigestsPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, p.keys.Help):
		p.push(NewHelpModal(p.keys))
		return nil, nil
	case key.Matches(msg, p.keys.NextPage):
		return nil, &PageNav{PageID: SummaryPageID}
	case key.Matches(msg, p.keys.NextMetric):
		p.metricIdx = (p.metricIdx + 1) % len(p.metrics)
		return p.reload(), nil
	case key.Matches(msg, p.keys.PrevMetric):
		p.metricIdx = (p.metricIdx + len(p.metrics) - 1) % len(p.metrics)
		return p.reload(), nil
	case key.Matches(msg, p.keys.Refresh):
		return p.reload(), nil
	case key.Matches(msg, p.keys.Enter):
		if row, ok := p.selected(); ok {
			title := fmt.Sprintf("Query %s (rank %d by %s)", row.ID, row.Rank, p.Metric())
			p.push(NewDetailModal(title, report.Detail(row, p.loc)))
		}
		return nil, nil
	case key.Matches(msg, p.keys.Home):
		p.table.GotoTop()
		return nil, nil
	case key.Matches(msg, p.keys.End):
		p.table.GotoBottom()
		return nil, nil
	}
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return cmd, nil
}

func (p *DigestsPage) selected() (model.DigestRow, bool) {
	i := p.table.Cursor()
	if i < 0 || i >= len(p.rows) {
		return model.DigestRow{}, false
	}
	return p.rows[i], true
}

func (p *DigestsPage) resize(width, height int) {
	if width == p.width && height == p.height {
		return
	}
	p.width, p.height = width, height
	cols := columnsFor(width)
	p.queryCol = cols[len(cols)-1].Width
	p.table.SetColumns(cols)
	p.table.SetWidth(width)
	p.table.SetHeight(max(height-chromeHeight, 3))
	p.table.SetRows(p.tableRows())
}

// columnsFor sizes the Query column to fill width. Each cell carries one
// column of padding on either side.
func columnsFor(width int) []table.Column {
	used := 0
	for _, c := range fixedColumns {
		used += c.Width + 2
	}
	cols := append([]table.Column(nil), fixedColumns...)
	return append(cols, table.Column{Title: "Query", Width: max(width-used-2, minQueryColumn)})
}

func (p *DigestsPage) tableRows() []table.Row {
	qw := p.queryCol
	out := make([]table.Row, 0, len(p.rows))
	for _, r := range p.rows {
		out = append(out, table.Row{
			strconv.Itoa(r.Rank),
			report.Count(r.Count),
			report.Seconds(r.TotalQueryTime),
			report.Seconds(r.MeanQueryTime),
			report.Seconds(r.P95QueryTime),
			report.Percent(r.Share),
			r.ID,
			report.Truncate(report.OneLine(r.Fingerprint), qw),
		})
	}
	return out
}

func (p *DigestsPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing..."
	}
	p.resize(width, height)

	if m := p.top(); m != nil {
		return m.View(width, height)
	}

	info := fmt.Sprintf("by %s | %d queries", p.Metric(), len(p.rows))
	header := renderHeader("Top Queries", info, width)
	bodyHeight := max(height-chromeHeight, 1)

	var body string
	switch {
	case p.loading && p.rows == nil:
		body = renderLoadingPlaceholder(p.spinner.View(), width, bodyHeight)
	case p.err != nil:
		body = renderMessage("Error: "+p.err.Error(), ColorRed, width, bodyHeight)
	case len(p.rows) == 0:
		body = renderMessage("No queries found.", ColorGray, width, bodyHeight)
	default:
		body = lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(p.table.View())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, renderStatusLine(p.help, p.keys, width))
}
