package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/san-kum/qhalab/internal/config"
	"github.com/san-kum/qhalab/internal/logging"
	"github.com/san-kum/qhalab/internal/qha"
	"github.com/san-kum/qhalab/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logJSON  bool
	log      = zap.NewNop()

	configFile       string
	saveConfig       string
	units            string
	eosName          string
	pressure         float64
	energyShift      float64
	tMax             float64
	excludeImaginary bool
	threshold        int
	factor           float64
	energyUnit       float64
	volumeFactor     float64
	parallel         bool
	workers          int
	polyfitWindow    int
	noSave           bool

	plotWidth  int
	plotHeight int
	plotCurves int
	themeName  string
)

// main registers the qhalab commands and exits with status 1 when the
// selected command fails.
func main() {
	rootCmd := &cobra.Command{
		Use:   "qhalab",
		Short: "quasi-harmonic thermodynamics from e-v and phonon data",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dataDir = viper.GetString("data")
			logLevel = viper.GetString("log-level")
			logJSON = viper.GetBool("log-json")
			l, err := logging.New(logLevel, logJSON)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".qhalab", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", logging.DefaultLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "structured json logs")

	viper.SetEnvPrefix("QHALAB")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	runCmd := &cobra.Command{
		Use:   "run [e-v.dat] [thermal_properties.yaml...]",
		Short: "run the quasi-harmonic analysis and save the results",
		Args:  cobra.ArbitraryArgs,
		RunE:  runQHA,
	}
	addRunFlags(runCmd)
	runCmd.Flags().StringVar(&saveConfig, "save-config", "", "write the effective config to this path")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "print the summary without saving the run")

	bulkCmd := &cobra.Command{
		Use:   "bulk [e-v.dat]",
		Short: "fit the static energies with every equation of state",
		Args:  cobra.MaximumNArgs(1),
		RunE:  fitBulk,
	}
	bulkCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	bulkCmd.Flags().StringVar(&units, "units", config.DefaultUnits, "unit preset for e-v.dat")
	bulkCmd.Flags().Float64Var(&factor, "factor", 1, "formula-unit factor for energies")
	bulkCmd.Flags().Float64Var(&energyUnit, "energy-unit", 0, "static energy unit in eV (overrides the preset)")
	bulkCmd.Flags().Float64Var(&volumeFactor, "volume-factor", 0, "volume factor (overrides the preset)")
	bulkCmd.Flags().Float64Var(&energyShift, "energy-shift", 0, "energy subtracted from static energies (eV)")
	bulkCmd.Flags().Float64Var(&pressure, "pressure", 0, "pressure at which to report the volume (GPa)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show the fits and anomalies of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id] [table]",
		Short: "plot a run table",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 0, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 0, "plot height")
	plotCmd.Flags().IntVar(&plotCurves, "curves", 0, "curves drawn for helmholtz-volume")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id] [table]",
		Short: "export a run table to CSV",
		Args:  cobra.ExactArgs(2),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	browseCmd := &cobra.Command{
		Use:   "browse [run_id]",
		Short: "browse the tables of a run interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  browseRun,
	}
	browseCmd.Flags().StringVar(&themeName, "theme", viz.ThemeCyberpunk.Name, "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list unit presets for e-v.dat",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUNITS\tENERGY (eV)\tVOLUME (Å³)")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%.10g\t%.10g\n", name, p.Description, p.EnergyUnit, p.VolumeFactor)
			}
			return w.Flush()
		},
	}

	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "list the output table names",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range qha.TableNames() {
				fmt.Println(name)
			}
		},
	}

	rootCmd.AddCommand(runCmd, bulkCmd, listCmd, showCmd, plotCmd, exportCSVCmd, exportJSONCmd, browseCmd, presetsCmd, tablesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&units, "units", config.DefaultUnits, "unit preset for e-v.dat")
	cmd.Flags().StringVar(&eosName, "eos", config.DefaultEOS, "equation of state (vinet, birch_murnaghan, murnaghan)")
	cmd.Flags().Float64Var(&pressure, "pressure", 0, "external pressure (GPa)")
	cmd.Flags().Float64Var(&energyShift, "energy-shift", 0, "energy subtracted from static energies (eV)")
	cmd.Flags().Float64Var(&tMax, "tmax", config.DefaultTMax, "maximum temperature (K)")
	cmd.Flags().BoolVar(&excludeImaginary, "exclude-imaginary", false, "drop volumes with imaginary modes")
	cmd.Flags().IntVar(&threshold, "imaginary-threshold", 0, "imaginary mode count that flags a volume")
	cmd.Flags().Float64Var(&factor, "factor", 1, "formula-unit factor for energies")
	cmd.Flags().Float64Var(&energyUnit, "energy-unit", 0, "static energy unit in eV (overrides the preset)")
	cmd.Flags().Float64Var(&volumeFactor, "volume-factor", 0, "volume factor (overrides the preset)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "fit temperatures in parallel")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (default GOMAXPROCS)")
	cmd.Flags().IntVar(&polyfitWindow, "polyfit-window", 0, "half-width of the Cp polynomial window")
}

// loadConfig reads --config if given and applies every flag the user set.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("units") {
		cfg.Units = units
	}
	if flags.Changed("eos") {
		cfg.EOS = eosName
	}
	if flags.Changed("pressure") {
		cfg.Pressure = pressure
	}
	if flags.Changed("energy-shift") {
		cfg.EnergyShift = energyShift
	}
	if flags.Changed("tmax") {
		cfg.TMax = tMax
	}
	if flags.Changed("exclude-imaginary") {
		cfg.ExcludeImaginary = excludeImaginary
	}
	if flags.Changed("imaginary-threshold") {
		cfg.ImaginaryThreshold = threshold
	}
	if flags.Changed("factor") {
		cfg.Factor = factor
	}
	if flags.Changed("energy-unit") {
		cfg.EnergyUnit = energyUnit
	}
	if flags.Changed("volume-factor") {
		cfg.VolumeFactor = volumeFactor
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("polyfit-window") {
		cfg.PolyfitWindow = polyfitWindow
	}

	if len(args) > 0 {
		cfg.EVFile = args[0]
	}
	if len(args) > 1 {
		cfg.ThermalFiles = args[1:]
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
