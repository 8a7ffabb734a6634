package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"

	"github.com/san-kum/qhalab/internal/qha"
)

type ExportTable struct {
	Name    string        `json:"name"`
	Columns []string      `json:"columns"`
	Blocks  []ExportBlock `json:"blocks"`
}

type ExportBlock struct {
	Label string    `json:"label,omitempty"`
	Rows  [][]Float `json:"rows"`
}

type ExportData struct {
	Run    RunMetadata   `json:"run"`
	Tables []ExportTable `json:"tables"`
}

func exportTable(t qha.Table) ExportTable {
	out := ExportTable{Name: t.Name, Columns: t.Columns, Blocks: make([]ExportBlock, len(t.Blocks))}
	for b, block := range t.Blocks {
		rows := make([][]Float, len(block.Rows))
		for i, row := range block.Rows {
			rows[i] = make([]Float, len(row))
			for j, v := range row {
				rows[i][j] = Float(v)
			}
		}
		out.Blocks[b] = ExportBlock{Label: block.Label, Rows: rows}
	}
	return out
}

// ExportJSON writes the run summary and tables as one JSON document.
// Missing values become null.
func ExportJSON(w io.Writer, meta RunMetadata, tables []qha.Table) error {
	data := ExportData{Run: meta, Tables: make([]ExportTable, len(tables))}
	for i, t := range tables {
		data.Tables[i] = exportTable(t)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV writes t with a header row. Tables with labelled blocks get a
// leading "block" column.
func ExportCSV(w io.Writer, t qha.Table) error {
	cw := csv.NewWriter(w)

	labelled := false
	for _, b := range t.Blocks {
		if b.Label != "" {
			labelled = true
			break
		}
	}

	header := t.Columns
	if labelled {
		header = append([]string{"block"}, header...)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, block := range t.Blocks {
		for _, row := range block.Rows {
			record := make([]string, 0, len(row)+1)
			if labelled {
				record = append(record, block.Label)
			}
			for _, v := range row {
				record = append(record, formatValue(v))
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
