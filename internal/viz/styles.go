package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	header   lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	active   lipgloss.Style
	graph    lipgloss.Style
	panel    lipgloss.Style
	help     lipgloss.Style
	warning  lipgloss.Style
	sparkLow lipgloss.Style
	sparkMid lipgloss.Style
	sparkHi  lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		header:   lipgloss.NewStyle().Foreground(t.Secondary).Bold(true).MarginBottom(1),
		label:    lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:    lipgloss.NewStyle().Foreground(t.Text),
		active:   lipgloss.NewStyle().Foreground(t.Primary).Bold(true),
		graph:    lipgloss.NewStyle().Foreground(t.Secondary).Padding(1, 0),
		panel:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Muted).Padding(0, 1),
		help:     lipgloss.NewStyle().Foreground(t.Muted).MarginTop(1),
		warning:  lipgloss.NewStyle().Foreground(t.Warning),
		sparkLow: lipgloss.NewStyle().Foreground(t.Muted),
		sparkMid: lipgloss.NewStyle().Foreground(t.Secondary),
		sparkHi:  lipgloss.NewStyle().Foreground(t.Accent),
	}
}

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Sparkline renders values as a one-line bar chart of at most width cells.
// Missing values are drawn as spaces.
func Sparkline(values []float64, width int) string {
	return sparkline(values, width, nil)
}

func sparkline(values []float64, width int, st *styles) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !math.IsNaN(v) {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	rng := hi - lo
	if rng == 0 || math.IsInf(rng, 0) {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		v := values[i*step]
		if math.IsNaN(v) {
			result.WriteRune(' ')
			continue
		}
		norm := (v - lo) / rng
		idx := int(norm * float64(len(sparkChars)-1))
		idx = min(max(idx, 0), len(sparkChars)-1)
		c := string(sparkChars[idx])
		switch {
		case st == nil:
			result.WriteString(c)
		case norm > 0.7:
			result.WriteString(st.sparkHi.Render(c))
		case norm > 0.3:
			result.WriteString(st.sparkMid.Render(c))
		default:
			result.WriteString(st.sparkLow.Render(c))
		}
	}
	return result.String()
}
