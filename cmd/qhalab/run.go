package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/qhalab/internal/config"
	"github.com/san-kum/qhalab/internal/eos"
	"github.com/san-kum/qhalab/internal/fit"
	"github.com/san-kum/qhalab/internal/phonon"
	"github.com/san-kum/qhalab/internal/qha"
	"github.com/san-kum/qhalab/internal/storage"
)

func runQHA(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if cfg.EVFile == "" || len(cfg.ThermalFiles) == 0 {
		return errors.New("need an e-v.dat file and one thermal_properties.yaml per volume")
	}
	if saveConfig != "" {
		if err := config.Save(saveConfig, cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}

	opts, err := cfg.SolverOptions()
	if err != nil {
		return err
	}
	opts.Logger = log

	in, err := phonon.Load(cfg.EVFile, cfg.ThermalFiles, cfg.UnitScale(), opts.Constants)
	if err != nil {
		return err
	}
	log.Info("loaded input",
		zap.String("ev_file", cfg.EVFile),
		zap.Int("volumes", in.Static.Len()),
		zap.Int("temperatures", len(in.Temperatures())))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := qha.NewSolver(opts).Solve(ctx, in)
	if err != nil {
		return err
	}

	printSummary(res)

	if noSave {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg, res)
	if err != nil {
		return err
	}
	fmt.Printf("\nsaved run: %s\n", runID)
	return nil
}

func printSummary(res *qha.Result) {
	fmt.Printf("eos: %s  pressure: %g GPa  volumes: %d  temperatures: %d\n",
		res.EOS, res.Pressure, len(res.Volumes), res.Len())
	if len(res.Excluded) > 0 {
		fmt.Printf("excluded volumes (imaginary modes): %v\n", res.Excluded)
	}
	for _, w := range res.Warnings {
		fmt.Printf("warning: %v\n", w)
	}
	if len(res.Failures) > 0 {
		fmt.Printf("failed fits: %d of %d\n", len(res.Failures), res.Len())
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nT (K)\tV0 (Å³)\tG (eV)\tB (GPa)\tα (1/K)\tCp (J/K/mol)\tγ")
	for _, i := range summaryRows(res) {
		fmt.Fprintf(w, "%g\t%s\t%s\t%s\t%s\t%s\t%s\n",
			res.Temperatures[i],
			num(res.Volume[i], "%.4f"),
			num(res.Gibbs[i], "%.6f"),
			num(res.BulkModulus[i], "%.2f"),
			num(res.ThermalExpansion[i], "%.3e"),
			num(res.HeatCapacityP[i], "%.3f"),
			num(res.Gruneisen[i], "%.3f"),
		)
	}
	w.Flush()

	if anomalies := res.Anomalies(); len(anomalies) > 0 {
		fmt.Printf("\n%d anomalies:\n", len(anomalies))
		for _, a := range anomalies {
			fmt.Printf("  %s\n", a)
		}
	}
}

// summaryRows picks the first and last temperatures plus the one nearest
// 300 K.
func summaryRows(res *qha.Result) []int {
	n := res.Len()
	if n == 0 {
		return nil
	}
	rows := []int{0}
	if ref := res.ReferenceIndex(qha.DefaultReferenceTemperature); ref > 0 && ref < n-1 {
		rows = append(rows, ref)
	}
	if n > 1 {
		rows = append(rows, n-1)
	}
	return rows
}

func num(v float64, format string) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return fmt.Sprintf(format, v)
}

func fitBulk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.EVFile = args[0]
	}
	if cfg.EVFile == "" {
		return errors.New("need an e-v.dat file")
	}

	static, err := phonon.ReadEVFile(cfg.EVFile)
	if err != nil {
		return err
	}
	in := qha.Input{Static: static}
	phonon.Scale(&in, cfg.UnitScale())
	for i := range in.Static.Energies {
		in.Static.Energies[i] -= cfg.EnergyShift
	}

	return writeBulk(os.Stdout, in.Static.Volumes, in.Static.Energies, cfg.Pressure)
}

// writeBulk fits every EOS kind to the static energies and prints the
// parameters with the volume at pressure (GPa).
func writeBulk(out io.Writer, volumes, energies []float64, pressure float64) error {
	c := qha.DefaultConstants()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "EOS\tE0 (eV)\tB0 (GPa)\tB0'\tV0 (Å³)\tV(%g GPa) (Å³)\tSSE\tITER\n", pressure)
	for _, kind := range eos.Kinds() {
		r, err := fit.EOS(kind, volumes, energies, fit.DefaultOptions())
		if err != nil {
			log.Warn("bulk fit failed", zap.Stringer("eos", kind), zap.Error(err))
			fmt.Fprintf(w, "%s\tfailed: %v\t\t\t\t\t\t\n", kind, err)
			continue
		}
		p := r.Params
		fmt.Fprintf(w, "%s\t%.6f\t%.3f\t%.3f\t%.4f\t%s\t%.3e\t%d\n",
			kind, p.E0, p.B0*c.EVAngstromToGPa, p.B0Prime, p.V0,
			num(volumeAt(kind, p, pressure, c), "%.4f"), r.SSE, r.Iterations)
	}
	return w.Flush()
}

// volumeAt is the volume of a fitted static EOS under pressure (GPa), or NaN
// when the pressure lies outside what the fit can bracket.
func volumeAt(kind eos.Kind, p eos.Params, pressure float64, c qha.Constants) float64 {
	v, err := eos.VolumeAtPressure(kind, p, c.GPaToEvA3(pressure))
	if err != nil {
		log.Debug("volume at pressure", zap.Stringer("eos", kind), zap.Float64("pressure", pressure), zap.Error(err))
		return math.NaN()
	}
	return v
}
