// Command hospicon-tui is a live terminal dashboard that polls a
// running hospicon process's Prometheus endpoint (pkg/metrics, spec
// §4.C) once a second and renders tick count, resident population by
// state, and resource occupancy, in the teacher's own dashboard style
// (cmd/tui: a tea.Tick-driven model, lipgloss-bordered stat boxes).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginRight(2)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

// snapshot is the subset of hospicon_* gauges this dashboard renders,
// scraped from the text exposition format each tick.
type snapshot struct {
	tick            float64
	activePatients  float64
	byState         map[string]float64
	chairsInUse     float64
	receptionDepth  float64
	triageDepth     float64
	icuReserved     float64
	icuInUse        float64
	admissions      float64
	discharges      float64
	deaths          float64
	noAttention     float64
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	addr      string
	snap      snapshot
	err       error
	startTime time.Time
	width     int
}

func initialModel(addr string) model {
	return model{addr: addr, startTime: time.Now(), snap: snapshot{byState: map[string]float64{}}}
}

func (m model) Init() tea.Cmd {
	return tickCmd()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		snap, err := scrape(m.addr)
		m.snap, m.err = snap, err
		return m, tickCmd()
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("hospicon — live simulation dashboard"))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("scrape error: %v", m.err)))
		b.WriteString("\n")
	}

	population := fmt.Sprintf(
		"Tick: %.0f\nResident patients: %.0f\nAdmissions: %.0f  Discharges: %.0f  Deaths: %.0f\nNo-attention: %.0f",
		m.snap.tick, m.snap.activePatients, m.snap.admissions, m.snap.discharges, m.snap.deaths, m.snap.noAttention,
	)
	resources := fmt.Sprintf(
		"Chairs in use: %.0f\nReception queue: %.0f\nTriage queue: %.0f\nICU beds reserved: %.0f / in use: %.0f",
		m.snap.chairsInUse, m.snap.receptionDepth, m.snap.triageDepth, m.snap.icuReserved, m.snap.icuInUse,
	)

	row := lipgloss.JoinHorizontal(lipgloss.Top,
		statsBoxStyle.Render(population),
		statsBoxStyle.Render(resources),
		statsBoxStyle.Render(byStateBlock(m.snap.byState)),
	)
	b.WriteString(row)
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(fmt.Sprintf("uptime %s · source %s · q to quit", time.Since(m.startTime).Round(time.Second), m.addr)))
	return b.String()
}

func byStateBlock(byState map[string]float64) string {
	if len(byState) == 0 {
		return "By state:\n(no data yet)"
	}
	states := make([]string, 0, len(byState))
	for s := range byState {
		states = append(states, s)
	}
	sort.Strings(states)
	var b strings.Builder
	b.WriteString("By state:\n")
	for _, s := range states {
		fmt.Fprintf(&b, "%-16s %.0f\n", s, byState[s])
	}
	return strings.TrimRight(b.String(), "\n")
}

// scrape fetches addr's Prometheus text exposition output and picks
// out the hospicon_* gauges this dashboard cares about. A small
// line-oriented scan is all that's needed here: pulling in the full
// expfmt decoder for a fixed set of metric names would be a heavier dependency
// than the dashboard warrants.
func scrape(addr string) (snapshot, error) {
	snap := snapshot{byState: map[string]float64{}}

	resp, err := http.Get(addr)
	if err != nil {
		return snap, fmt.Errorf("fetching %s: %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("fetching %s: status %s", addr, resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		name, labels := splitLabels(fields[0])
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		switch name {
		case "hospicon_current_tick":
			snap.tick = value
		case "hospicon_active_patients":
			snap.activePatients = value
		case "hospicon_admissions_total":
			snap.admissions = value
		case "hospicon_discharges_total":
			snap.discharges = value
		case "hospicon_deaths_total":
			snap.deaths = value
		case "hospicon_no_attention_total":
			snap.noAttention = value
		case "hospicon_chairs_in_use":
			snap.chairsInUse = value
		case "hospicon_reception_queue_depth":
			snap.receptionDepth = value
		case "hospicon_triage_queue_depth":
			snap.triageDepth = value
		case "hospicon_icu_beds_reserved":
			snap.icuReserved = value
		case "hospicon_icu_beds_in_use":
			snap.icuInUse = value
		case "hospicon_patients_by_state":
			if state, ok := labels["state"]; ok {
				snap.byState[state] = value
			}
		}
	}
	return snap, scanner.Err()
}

// splitLabels splits "metric_name{k=\"v\",...}" into its name and
// label map; a bare "metric_name" returns an empty label map.
func splitLabels(s string) (string, map[string]string) {
	brace := strings.IndexByte(s, '{')
	if brace < 0 {
		return s, nil
	}
	name := s[:brace]
	labels := make(map[string]string)
	body := strings.TrimSuffix(s[brace+1:], "}")
	for _, pair := range strings.Split(body, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		labels[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return name, labels
}

func main() {
	addr := flag.String("addr", "http://localhost:9090/metrics", "hospicon metrics endpoint to poll")
	flag.Parse()

	p := tea.NewProgram(initialModel(*addr), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "hospicon-tui: %v\n", err)
		os.Exit(1)
	}
}
