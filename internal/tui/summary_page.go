package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/slowdigest/internal/digest"
	"github.com/tinytelemetry/slowdigest/internal/model"
	"github.com/tinytelemetry/slowdigest/internal/report"
)

type summaryLoadedMsg struct {
	summary model.RunSummary
	counts  map[string]int64
	top     []model.DigestRow
	err     error
}

// SummaryPage shows the run summary, store table sizes and a chart of the
// queries that dominate total query time.
type SummaryPage struct {
	store model.ReadAPI
	keys  KeyMap
	help  help.Model
	loc   *time.Location

	summary model.RunSummary
	counts  map[string]int64
	top     []model.DigestRow
	loaded  bool
	err     error
}

func NewSummaryPage(store model.ReadAPI, loc *time.Location) *SummaryPage {
	if loc == nil {
		loc = time.UTC
	}
	return &SummaryPage{store: store, keys: DefaultKeyMap(), help: help.New(), loc: loc}
}

func (p *SummaryPage) ID() string { return SummaryPageID }

func (p *SummaryPage) Init() tea.Cmd {
	store := p.store
	return func() tea.Msg {
		if store == nil {
			return summaryLoadedMsg{err: fmt.Errorf("no digest store")}
		}
		s, err := store.Summary()
		if err != nil {
			return summaryLoadedMsg{err: err}
		}
		counts, err := store.TableRowCounts()
		if err != nil {
			return summaryLoadedMsg{err: err}
		}
		top, err := store.TopDigests(shareChartBars, digest.MetricTotalTime.String())
		return summaryLoadedMsg{summary: s, counts: counts, top: top, err: err}
	}
}

func (p *SummaryPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case summaryLoadedMsg:
		p.loaded = true
		p.summary, p.counts, p.top, p.err = msg.summary, msg.counts, msg.top, msg.err
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.ForceQuit), key.Matches(msg, p.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.NextPage), key.Matches(msg, p.keys.Escape):
			return nil, &PageNav{PageID: DigestsPageID}
		case key.Matches(msg, p.keys.Refresh):
			return p.Init(), nil
		}
	}
	return nil, nil
}

func (p *SummaryPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "Initializing..."
	}
	header := renderHeader("Run Summary", "", width)
	bodyHeight := max(height-chromeHeight, 1)

	var body string
	switch {
	case !p.loaded:
		body = renderMessage("Loading...", ColorGray, width, bodyHeight)
	case p.err != nil:
		body = renderMessage("Error: "+p.err.Error(), ColorRed, width, bodyHeight)
	default:
		body = lipgloss.NewStyle().
			Padding(1, 2).
			Height(bodyHeight).
			MaxHeight(bodyHeight).
			Render(p.renderSummary(width - 4))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, renderStatusLine(p.help, p.keys, width))
}

func (p *SummaryPage) renderSummary(width int) string {
	label := lipgloss.NewStyle().Foreground(ColorBlue).Bold(true)
	s := p.summary

	var b strings.Builder
	line := func(name, value string) {
		fmt.Fprintf(&b, "%s %s\n", label.Render(padRight(name+":", 18)), value)
	}
	line("Sources", strings.Join(s.Sources, ", "))
	line("Time range", report.TimeRange(s.FirstSeen, s.LastSeen, p.loc))
	line("Entries", report.Count(s.Entries))
	line("Unique queries", report.Count(int64(s.Fingerprints)))
	line("Total query time", report.Seconds(s.TotalQueryTime))
	line("Malformed lines", report.Count(s.MalformedLines))
	line("Skipped entries", report.Count(s.SkippedEntries))
	line("Orphan lines", report.Count(s.OrphanLines))
	line("Admin lines", report.Count(s.AdminLines))

	if len(p.counts) > 0 {
		b.WriteString("\n" + label.Render("Store tables") + "\n")
		names := make([]string, 0, len(p.counts))
		for name := range p.counts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s %s\n", padRight(name, 18), report.Count(p.counts[name]))
		}
	}

	b.WriteString("\n" + label.Render("Share of total query time") + "\n")
	b.WriteString(renderShareChart(p.top, width))
	return b.String()
}
