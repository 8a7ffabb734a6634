package main

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/qhalab/internal/qha"
	"github.com/san-kum/qhalab/internal/storage"
	"github.com/san-kum/qhalab/internal/viz"
)

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEOS\tTIME\tPRESSURE\tVOLUMES\tTEMPS\tFAILED\tANOMALIES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%gGPa\t%d\t%d\t%d\t%d\n",
			run.ID,
			run.EOS,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Pressure,
			len(run.Volumes),
			run.Temperatures,
			len(run.Failures),
			len(run.Anomalies),
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\neos: %s\npressure: %g GPa\ncreated: %s\n",
		meta.ID, meta.EOS, meta.Pressure, meta.Timestamp.Format("2006-01-02 15:04:05"))
	if meta.Config != nil && meta.Config.EVFile != "" {
		fmt.Printf("input: %s (+%d thermal files)\n", meta.Config.EVFile, len(meta.Config.ThermalFiles))
	}
	if len(meta.Excluded) > 0 {
		fmt.Printf("excluded volumes: %v\n", meta.Excluded)
	}
	for _, warn := range meta.Warnings {
		fmt.Printf("warning: %s\n", warn)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nT (K)\tE0 (eV)\tB0 (eV/Å³)\tB0'\tV0 (Å³)\tSSE\tITER\tSTATUS")
	for _, f := range meta.Fits {
		status := "ok"
		if !f.OK() {
			status = f.Error
		}
		fmt.Fprintf(w, "%g\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			f.Temperature,
			num(float64(f.E0), "%.6f"),
			num(float64(f.B0), "%.5f"),
			num(float64(f.B0Prime), "%.3f"),
			num(float64(f.V0), "%.4f"),
			num(float64(f.SSE), "%.2e"),
			f.Iterations,
			status,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(meta.Anomalies) > 0 {
		fmt.Printf("\n%d anomalies:\n", len(meta.Anomalies))
		for _, a := range meta.Anomalies {
			fmt.Printf("  %s\n", a)
		}
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	name := qha.TableVolumeTemperature
	if len(args) > 1 {
		name = args[1]
	}

	st := storage.New(dataDir)
	t, err := st.LoadTable(runID, name)
	if err != nil {
		return err
	}

	plot, err := viz.Plot(t, viz.PlotOptions{Width: plotWidth, Height: plotHeight, MaxCurves: plotCurves})
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n\n%s\n", runID, name, plot)

	if len(t.Blocks) == 1 {
		ys := t.Series(1)
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range ys {
			if !math.IsNaN(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
		fmt.Printf("\nmin: %.6g  max: %.6g  points: %d\n", lo, hi, len(ys))
	}
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	t, err := st.LoadTable(args[0], args[1])
	if err != nil {
		return err
	}
	return storage.ExportCSV(os.Stdout, t)
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tables, err := loadTables(st, runID, meta.Tables)
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, *meta, tables)
}

func browseRun(cmd *cobra.Command, args []string) error {
	runID := args[0]
	if !slices.Contains(viz.ThemeNames(), themeName) {
		return fmt.Errorf("unknown theme: %s (available: %s)", themeName, strings.Join(viz.ThemeNames(), ", "))
	}

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tables, err := loadTables(st, runID, meta.Tables)
	if err != nil {
		return err
	}

	anomalies := make([]string, len(meta.Anomalies))
	for i, a := range meta.Anomalies {
		anomalies[i] = a.String()
	}

	browser := viz.NewBrowser(runID, tables, anomalies).WithTheme(themeName)
	p := tea.NewProgram(browser, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func loadTables(st *storage.Store, runID string, names []string) ([]qha.Table, error) {
	if len(names) == 0 {
		names = qha.TableNames()
	}
	tables := make([]qha.Table, 0, len(names))
	for _, name := range names {
		t, err := st.LoadTable(runID, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}
