// Package browser is the interactive headers-to-cut browser.
package browser

import (
	"context"
	"fmt"
	"includecut/internal/engine/floors"
	"sort"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// Service recomputes rows and reports against the current edge lists.
type Service interface {
	Inspect(ctx context.Context, header string) (*floors.Report, error)
	Evaluate(ctx context.Context, header string) (floors.Candidate, error)
}

type Options struct {
	Top int
	// Copy puts text on the clipboard.
	Copy func(string) error
}

type row struct {
	cand  floors.Candidate
	stale bool
}

type item struct {
	row row
}

func (i item) Title() string { return i.row.cand.Header }

func (i item) Description() string {
	c := i.row.cand
	if i.row.stale {
		return fmt.Sprintf("remain ?  floor ?  dominated ?  tsize %d", c.TSize)
	}
	return fmt.Sprintf("remain %.2f%%  floor %.2f%%  dominated %d  tsize %d", c.RemainingPct, c.AllCutsFloorPct, c.TopDirectDominated, c.TSize)
}

func (i item) FilterValue() string { return i.row.cand.Header }

// StaleMsg reports that an edge list changed on disk.
type StaleMsg struct {
	Path string
}

type inspectedMsg struct {
	header string
	report *floors.Report
	err    error
}

type refreshedMsg struct {
	rows   map[string]floors.Candidate
	failed int
}

type copiedMsg struct {
	header string
	err    error
}

type Model struct {
	ctx  context.Context
	svc  Service
	copy func(string) error

	list list.Model
	rows []row

	detail    *floors.Report
	detailErr string
	status    string
	busy      bool
}

// NewModel keeps the top rows by dominated count.
func NewModel(ctx context.Context, svc Service, candidates []floors.Candidate, opts Options) Model {
	sorted := append([]floors.Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TopDirectDominated > sorted[j].TopDirectDominated
	})
	if opts.Top > 0 && len(sorted) > opts.Top {
		sorted = sorted[:opts.Top]
	}
	rows := make([]row, len(sorted))
	for i, c := range sorted {
		rows[i] = row{cand: c}
	}

	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = fmt.Sprintf("Headers to cut (%d results)", len(rows))
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	m := Model{ctx: ctx, svc: svc, copy: opts.Copy, list: l, rows: rows}
	m.syncItems()
	return m
}

func (m *Model) syncItems() {
	items := make([]list.Item, len(m.rows))
	for i, r := range m.rows {
		items[i] = item{row: r}
	}
	m.list.SetItems(items)
}

func (m Model) selected() (row, bool) {
	it, ok := m.list.SelectedItem().(item)
	return it.row, ok
}

func (m Model) staleCount() int {
	n := 0
	for _, r := range m.rows {
		if r.stale {
			n++
		}
	}
	return n
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		height := msg.Height - v - 10
		if height < 5 {
			height = 5
		}
		m.list.SetSize(msg.Width-h, height)
	case StaleMsg:
		for i := range m.rows {
			m.rows[i].stale = true
		}
		m.syncItems()
		m.status = fmt.Sprintf("%s changed; press r to refresh", msg.Path)
		return m, nil
	case inspectedMsg:
		m.busy = false
		m.detail = msg.report
		m.detailErr = ""
		if msg.err != nil {
			m.detailErr = msg.err.Error()
		}
		return m, nil
	case refreshedMsg:
		m.busy = false
		for i := range m.rows {
			if c, ok := msg.rows[m.rows[i].cand.Header]; ok {
				m.rows[i] = row{cand: c}
			}
		}
		m.syncItems()
		m.status = fmt.Sprintf("Refreshed %d headers", len(msg.rows))
		if msg.failed > 0 {
			m.status += fmt.Sprintf(", %d kept stale after errors", msg.failed)
		}
		return m, nil
	case copiedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Copy failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Copied %s", msg.header)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc":
		if m.detail != nil || m.detailErr != "" {
			m.detail = nil
			m.detailErr = ""
			return m, nil
		}
	case "enter":
		r, ok := m.selected()
		if !ok || m.svc == nil || m.busy {
			return m, nil
		}
		m.busy = true
		m.status = fmt.Sprintf("Inspecting %s...", r.cand.Header)
		return m, inspectCmd(m.ctx, m.svc, r.cand.Header)
	case "r":
		if m.svc == nil || m.busy || m.staleCount() == 0 {
			return m, nil
		}
		var headers []string
		for _, r := range m.rows {
			if r.stale {
				headers = append(headers, r.cand.Header)
			}
		}
		m.busy = true
		m.status = "Refreshing modified headers... please wait"
		return m, refreshCmd(m.ctx, m.svc, headers)
	case "c":
		r, ok := m.selected()
		if !ok || m.copy == nil {
			return m, nil
		}
		return m, copyCmd(m.copy, r.cand.Header)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func inspectCmd(ctx context.Context, svc Service, header string) tea.Cmd {
	return func() tea.Msg {
		report, err := svc.Inspect(ctx, header)
		return inspectedMsg{header: header, report: report, err: err}
	}
}

// refreshCmd keeps a row stale when its evaluation fails.
func refreshCmd(ctx context.Context, svc Service, headers []string) tea.Cmd {
	return func() tea.Msg {
		msg := refreshedMsg{rows: make(map[string]floors.Candidate, len(headers))}
		for _, header := range headers {
			c, err := svc.Evaluate(ctx, header)
			if err != nil {
				msg.failed++
				continue
			}
			msg.rows[header] = c
		}
		return msg
	}
}

func copyCmd(copy func(string) error, header string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{header: header, err: copy(header)}
	}
}
