package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/qhalab/internal/qha"
)

// WriteTable renders t in the gnuplot-friendly layout phonopy uses: a
// tab-separated "# " header, "## " block labels and two blank lines between
// blocks. Missing values are written as nan.
func WriteTable(w io.Writer, t qha.Table) error {
	if _, err := fmt.Fprintf(w, "# %s\n", strings.Join(t.Columns, "\t")); err != nil {
		return err
	}
	for b, block := range t.Blocks {
		if b > 0 {
			if _, err := io.WriteString(w, "\n\n"); err != nil {
				return err
			}
		}
		if block.Label != "" {
			if _, err := fmt.Fprintf(w, "## %s\n", block.Label); err != nil {
				return err
			}
		}
		for _, row := range block.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = fmt.Sprintf("%24s", formatValue(v))
			}
			if _, err := fmt.Fprintln(w, strings.Join(cells, " ")); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReadTable parses the layout written by WriteTable.
func ReadTable(r io.Reader) (qha.Table, error) {
	var t qha.Table
	var cur *qha.Block
	flush := func() {
		if cur != nil && (len(cur.Rows) > 0 || cur.Label != "") {
			t.Blocks = append(t.Blocks, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		switch {
		case text == "":
			if cur != nil && len(cur.Rows) > 0 {
				flush()
			}
		case strings.HasPrefix(text, "##"):
			flush()
			cur = &qha.Block{Label: strings.TrimSpace(text[2:])}
		case strings.HasPrefix(text, "#"):
			t.Columns = splitHeader(text[1:])
		default:
			row, err := parseRow(strings.Fields(text))
			if err != nil {
				return t, fmt.Errorf("line %d: %w", line, err)
			}
			if cur == nil {
				cur = &qha.Block{}
			}
			cur.Rows = append(cur.Rows, row)
		}
	}
	if err := sc.Err(); err != nil {
		return t, err
	}
	flush()
	return t, nil
}
