package browser

import (
	"fmt"
	"includecut/internal/engine/floors"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	pctStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24"))

	dominatedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#C084FC")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

func (m Model) View() string {
	body := m.list.View()
	if details := m.renderDetail(); details != "" {
		body += "\n\n" + details
	}
	if m.status != "" {
		body += "\n\n" + statusStyle.Render(m.status)
	}
	return docStyle.Render(body + "\n\n" + m.renderHelp())
}

func (m Model) renderHelp() string {
	if m.svc == nil {
		return statusStyle.Render("[↑/↓] Select  [c] Copy header  [q] Quit")
	}
	parts := []string{"[↑/↓] Select", "[/] Filter", "[Enter] Inspect"}
	if m.staleCount() > 0 {
		parts = append(parts, "[r] Refresh")
	}
	if m.detail != nil || m.detailErr != "" {
		parts = append(parts, "[esc] Close")
	}
	parts = append(parts, "[c] Copy header", "[q] Quit")
	return statusStyle.Render(strings.Join(parts, "  "))
}

func (m Model) renderDetail() string {
	if m.detailErr != "" {
		return errorStyle.Render("Inspect failed: " + m.detailErr)
	}
	if m.detail == nil {
		return ""
	}
	r := m.detail
	lines := []string{
		fmt.Sprintf("%s  (%d of %d roots)", r.Target, r.Floors.Original.Count, r.TotalRoots),
		floorLine("Remaining", r.Floors.Remaining),
		floorLine("Only direct cuts floor", r.Floors.DirectCuts),
		floorLine("All cuts floor", r.Floors.AllCuts),
		floorLine("Root direct includes floor", r.Floors.RootDirectIncludes),
		fmt.Sprintf("Top direct includers (by %s)", r.SortBy),
	}
	lines = append(lines, cutLines(r.TopDirect)...)
	lines = append(lines, fmt.Sprintf("Top indirect cuts (by %s)", r.SortBy))
	lines = append(lines, cutLines(r.TopIndirect)...)
	return strings.Join(lines, "\n")
}

func floorLine(label string, l floors.Level) string {
	return fmt.Sprintf("  %s: %s (%.2f%% prevalence, %+.2f%%)", label, pctStyle.Render(fmt.Sprintf("%.2f%%", l.Pct)), l.Prevalence, l.Delta)
}

func cutLines(cuts []floors.Cut) []string {
	if len(cuts) == 0 {
		return []string{"   none"}
	}
	out := make([]string, len(cuts))
	for i, c := range cuts {
		out[i] = fmt.Sprintf("   %s -> %s  %.2f%%  %s", c.Includer, c.Included, c.Prevalence, dominatedStyle.Render(fmt.Sprintf("%d dominated", c.Dominated)))
	}
	return out
}
