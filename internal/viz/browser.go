package viz

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/qhalab/internal/qha"
)

const (
	width  = 80
	height = 24
)

// Browser pages through the output tables of one run.
type Browser struct {
	title         string
	tables        []qha.Table
	anomalies     []string
	selected      int
	theme         int
	width, height int
	styles        styles
}

// NewBrowser initializes a viewer over tables. anomalies are shown under the
// chart of every table.
func NewBrowser(title string, tables []qha.Table, anomalies []string) Browser {
	return Browser{
		title:     title,
		tables:    tables,
		anomalies: anomalies,
		width:     width,
		height:    height,
		styles:    newStyles(Themes[0]),
	}
}

// WithTheme switches the browser to the named theme. Unknown names fall back
// to the default theme.
func (m Browser) WithTheme(name string) Browser {
	t := GetTheme(name)
	for i := range Themes {
		if Themes[i].Name == t.Name {
			m.theme = i
		}
	}
	m.styles = newStyles(t)
	return m
}

func (m Browser) Init() tea.Cmd { return nil }

func (m Browser) Selected() int { return m.selected }

func (m Browser) Theme() Theme { return Themes[m.theme] }

func (m Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "right", "l", "tab", "down", "j":
			m.move(1)
		case "left", "h", "shift+tab", "up", "k":
			m.move(-1)
		case "home", "g":
			m.selected = 0
		case "end", "G":
			m.selected = max(len(m.tables)-1, 0)
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.styles = newStyles(Themes[m.theme])
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	}
	return m, nil
}

func (m *Browser) move(d int) {
	if len(m.tables) == 0 {
		return
	}
	m.selected = (m.selected + d + len(m.tables)) % len(m.tables)
}

func (m Browser) View() string {
	st := m.styles
	if len(m.tables) == 0 {
		return st.header.Render(m.title) + "\n(no tables)\n"
	}

	sidebar := m.sidebar()
	body := m.chart()

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, st.panel.Render(sidebar), "  ", body))
	s.WriteString("\n")
	if len(m.anomalies) > 0 {
		s.WriteString("\n" + st.warning.Render(fmt.Sprintf("%d anomalies:", len(m.anomalies))) + "\n")
		for i, a := range m.anomalies {
			if i == 5 {
				s.WriteString(st.warning.Render(fmt.Sprintf("  ... %d more", len(m.anomalies)-5)) + "\n")
				break
			}
			s.WriteString(st.warning.Render("  "+a) + "\n")
		}
	}
	s.WriteString(st.help.Render(fmt.Sprintf("←/→:Table  T:Theme (%s)  Q:Quit", m.Theme().Name)))
	return s.String()
}

func (m Browser) sidebar() string {
	st := m.styles
	var s strings.Builder
	for i, t := range m.tables {
		line := fmt.Sprintf("%-26s %s", t.Name, sparkline(t.Series(1), 12, &st))
		if i == m.selected {
			s.WriteString(st.active.Render("> "+line) + "\n")
		} else {
			s.WriteString("  " + st.value.Render(line) + "\n")
		}
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m Browser) chart() string {
	st := m.styles
	t := m.tables[m.selected]

	opts := PlotOptions{
		Width:  max(m.width-60, 20),
		Height: max(m.height-14, 6),
	}
	plot, err := Plot(t, opts)
	if err != nil {
		plot = st.warning.Render(err.Error())
	}

	var s strings.Builder
	s.WriteString(st.active.Render(t.Name) + "\n")
	s.WriteString(st.graph.Render(plot) + "\n")

	if len(t.Blocks) == 1 {
		ys := t.Series(1)
		lo, hi, missing := math.Inf(1), math.Inf(-1), 0
		for _, v := range ys {
			if math.IsNaN(v) {
				missing++
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		s.WriteString(st.label.Render("Points") + st.value.Render(fmt.Sprintf("%d", len(ys))) + "\n")
		if missing < len(ys) {
			s.WriteString(st.label.Render("Range") + st.value.Render(fmt.Sprintf("%.6g .. %.6g", lo, hi)) + "\n")
		}
		s.WriteString(st.label.Render("Missing") + st.value.Render(fmt.Sprintf("%d", missing)) + "\n")
	} else {
		s.WriteString(st.label.Render("Blocks") + st.value.Render(fmt.Sprintf("%d", len(t.Blocks))) + "\n")
	}
	return s.String()
}
