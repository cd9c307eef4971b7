package cli

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pandu874/webloganalyzer/internal/observability"
	"github.com/pandu874/webloganalyzer/pkg/models"
)

// Dashboard panel indices.
const (
	panelSummary = iota
	panelStatus
	panelMalformed
	panelCount
)

// malformedPageSize is the number of malformed lines shown at once.
const malformedPageSize = 10

type dashboardModel struct {
	path        string
	activePanel int
	width       int
	height      int

	// Data.
	result *models.AnalysisResult
	alerts []alertSnapshot
	offset int

	// State.
	loading bool
	err     error
}

type alertSnapshot struct {
	severity string
	message  string
}

// analysisLoadedMsg carries a finished analysis back to the model.
type analysisLoadedMsg struct {
	result *models.AnalysisResult
	alerts []alertSnapshot
	err    error
}

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	class2xx = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	class3xx = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	class4xx = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	class5xx = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	lineNumberStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel(path string) dashboardModel {
	return dashboardModel{
		path:        path,
		activePanel: panelSummary,
		loading:     true,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return loadAnalysis(m.path)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "down", "j":
			m.scroll(1)
			return m, nil
		case "up", "k":
			m.scroll(-1)
			return m, nil
		case "r":
			m.loading = true
			return m, loadAnalysis(m.path)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case analysisLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.result = msg.result
		m.alerts = msg.alerts
		m.offset = 0
		m.err = nil
		return m, nil
	}

	return m, nil
}

// scroll moves the malformed line window when that panel is active.
func (m *dashboardModel) scroll(delta int) {
	if m.activePanel != panelMalformed || m.result == nil {
		return
	}
	maxOffset := len(m.result.MalformedLines) - malformedPageSize
	if maxOffset < 0 {
		maxOffset = 0
	}
	m.offset += delta
	if m.offset < 0 {
		m.offset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" weblog: " + filepath.Base(m.path) + " ")
	help := helpStyle.Render("tab: switch panel | j/k: scroll | r: re-analyze | q: quit")

	if m.loading {
		return fmt.Sprintf("%s\n\n  Analyzing...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	summaryPanel := m.renderSummaryPanel()
	statusPanel := m.renderStatusPanel()
	malformedPanel := m.renderMalformedPanel()

	// Available width for panels after accounting for margins.
	availableWidth := m.width - 2

	var body string
	if availableWidth > 120 {
		colWidth := availableWidth / 3
		summaryPanel = m.applyPanelStyle(panelSummary, summaryPanel, colWidth-4)
		statusPanel = m.applyPanelStyle(panelStatus, statusPanel, colWidth-4)
		malformedPanel = m.applyPanelStyle(panelMalformed, malformedPanel, colWidth-4)
		body = lipgloss.JoinHorizontal(lipgloss.Top, summaryPanel, statusPanel, malformedPanel)
	} else {
		panelWidth := availableWidth - 4
		if panelWidth < 20 {
			panelWidth = 20
		}
		summaryPanel = m.applyPanelStyle(panelSummary, summaryPanel, panelWidth)
		statusPanel = m.applyPanelStyle(panelStatus, statusPanel, panelWidth)
		malformedPanel = m.applyPanelStyle(panelMalformed, malformedPanel, panelWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, summaryPanel, statusPanel, malformedPanel)
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", title, body, help)
}

func (m dashboardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m dashboardModel) renderSummaryPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Summary"))
	b.WriteString("\n")

	if m.result == nil {
		b.WriteString("  No analysis available.")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Requests", m.result.TotalRequests))
	b.WriteString(fmt.Sprintf("  %-14s %d\n", "Malformed", m.result.MalformedCount()))

	classes := m.result.ClassCounts()
	for _, class := range []string{"1xx", "2xx", "3xx", "4xx", "5xx", "other"} {
		if classes[class] == 0 {
			continue
		}
		label := fmt.Sprintf("  %-14s %d", class, classes[class])
		b.WriteString(styleForStatusClass(class).Render(label))
		b.WriteString("\n")
	}

	if len(m.alerts) > 0 {
		b.WriteString("\n")
		for _, a := range m.alerts {
			sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
			b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
		}
	}

	return b.String()
}

func (m dashboardModel) renderStatusPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Status codes"))
	b.WriteString("\n")

	if m.result == nil || len(m.result.StatusCounts) == 0 {
		b.WriteString("  No requests parsed.")
		return b.String()
	}

	for _, sc := range m.result.SortedStatusCounts() {
		label := fmt.Sprintf("  %-14d %d", sc.Code, sc.Count)
		b.WriteString(styleForStatusClass(models.StatusClass(sc.Code)).Render(label))
		b.WriteString("\n")
	}

	return b.String()
}

func (m dashboardModel) renderMalformedPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Malformed lines"))
	b.WriteString("\n")

	if m.result == nil || len(m.result.MalformedLines) == 0 {
		b.WriteString("  Every line parsed.")
		return b.String()
	}

	lines := m.result.MalformedLines
	end := m.offset + malformedPageSize
	if end > len(lines) {
		end = len(lines)
	}
	for _, ml := range lines[m.offset:end] {
		b.WriteString(fmt.Sprintf("  %s %s\n", lineNumberStyle.Render(fmt.Sprintf("%5d", ml.LineNumber)), ml.Preview))
		b.WriteString(fmt.Sprintf("        %s\n", errorStyle.Render(ml.Error)))
	}

	b.WriteString(fmt.Sprintf("\n  %d-%d of %d", m.offset+1, end, len(lines)))

	return b.String()
}

func styleForStatusClass(class string) lipgloss.Style {
	switch class {
	case "2xx":
		return class2xx
	case "3xx":
		return class3xx
	case "4xx":
		return class4xx
	case "5xx":
		return class5xx
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

// loadAnalysis returns a command that analyzes path and checks the result
// against the alert thresholds.
func loadAnalysis(path string) tea.Cmd {
	return func() tea.Msg {
		if Analyzer == nil {
			return analysisLoadedMsg{err: fmt.Errorf("log analyzer not initialized")}
		}

		result, err := Analyzer.Analyze(path)
		if err != nil {
			return analysisLoadedMsg{err: fmt.Errorf("analyzing %s: %w", path, err)}
		}

		msg := analysisLoadedMsg{result: result}
		if AlertEngine != nil {
			alerts := AlertEngine.EvaluateAnalysis(observability.AnalysisSummary{
				File:          filepath.Base(path),
				TotalRequests: result.TotalRequests,
				Malformed:     result.MalformedCount(),
				StatusCounts:  result.StatusCounts,
			})

			// High severity first.
			sort.SliceStable(alerts, func(i, j int) bool {
				return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
			})
			for _, a := range alerts {
				msg.alerts = append(msg.alerts, alertSnapshot{
					severity: string(a.Severity),
					message:  a.Message,
				})
			}
		}
		return msg
	}
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard FILE",
	Short: "Interactive TUI for browsing a log analysis",
	Long: `Analyze a server log file and browse the result in a terminal dashboard:
a summary with status classes and alerts, the count of every status code,
and the malformed lines.

Navigate between panels with Tab, scroll malformed lines with j/k,
re-analyze with r, quit with q.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Analyzer == nil {
			return fmt.Errorf("log analyzer not initialized")
		}
		p := tea.NewProgram(newDashboardModel(args[0]), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
