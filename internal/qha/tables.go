package qha

import "fmt"

// Output table names, matching the file stems phonopy-qha writes.
const (
	TableHelmholtzVolume        = "helmholtz-volume"
	TableVolumeTemperature      = "volume-temperature"
	TableThermalExpansion       = "thermal_expansion"
	TableVolumeExpansion        = "volume_expansion"
	TableGibbsTemperature       = "gibbs-temperature"
	TableBulkModulusTemperature = "bulk_modulus-temperature"
	TableCpTemperature          = "Cp-temperature"
	TableCpTemperaturePolyfit   = "Cp-temperature_polyfit"
	TableGruneisenTemperature   = "gruneisen-temperature"
)

// TableNames lists the output tables in the order they are written.
func TableNames() []string {
	return []string{
		TableHelmholtzVolume,
		TableVolumeTemperature,
		TableThermalExpansion,
		TableVolumeExpansion,
		TableGibbsTemperature,
		TableBulkModulusTemperature,
		TableCpTemperature,
		TableCpTemperaturePolyfit,
		TableGruneisenTemperature,
	}
}

// Table is a named set of numeric columns. Temperature tables have a single
// unlabelled block; helmholtz-volume has one block per temperature.
type Table struct {
	Name    string
	Columns []string
	Blocks  []Block
}

type Block struct {
	Label string
	Rows  [][]float64
}

// Series returns column col of the first block, the shape plotting expects.
func (t Table) Series(col int) []float64 {
	if len(t.Blocks) == 0 {
		return nil
	}
	out := make([]float64, 0, len(t.Blocks[0].Rows))
	for _, row := range t.Blocks[0].Rows {
		if col < len(row) {
			out = append(out, row[col])
		}
	}
	return out
}

// Tables renders every output table of r.
func (r *Result) Tables() []Table {
	tables := make([]Table, 0, len(TableNames()))
	for _, name := range TableNames() {
		t, _ := r.Table(name)
		tables = append(tables, t)
	}
	return tables
}

// Table renders one output table by name.
func (r *Result) Table(name string) (Table, error) {
	switch name {
	case TableHelmholtzVolume:
		return r.helmholtzTable(), nil
	case TableVolumeTemperature:
		return r.temperatureTable(name, "volume (A^3)", r.Volume), nil
	case TableThermalExpansion:
		return r.temperatureTable(name, "alpha (1/K)", r.ThermalExpansion), nil
	case TableVolumeExpansion:
		return r.temperatureTable(name, "(V/Vref)^(1/3)-1", r.VolumeExpansion), nil
	case TableGibbsTemperature:
		return r.temperatureTable(name, "G (eV)", r.Gibbs), nil
	case TableBulkModulusTemperature:
		return r.temperatureTable(name, "B (GPa)", r.BulkModulus), nil
	case TableCpTemperature:
		return r.temperatureTable(name, "Cp (J/K/mol)", r.HeatCapacityP), nil
	case TableCpTemperaturePolyfit:
		return r.temperatureTable(name, "Cp (J/K/mol)", r.HeatCapacityPPolyfit), nil
	case TableGruneisenTemperature:
		return r.temperatureTable(name, "gamma", r.Gruneisen), nil
	}
	return Table{}, fmt.Errorf("unknown table: %s (available: %v)", name, TableNames())
}

func (r *Result) temperatureTable(name, column string, values []float64) Table {
	rows := make([][]float64, len(r.Temperatures))
	for i, t := range r.Temperatures {
		rows[i] = []float64{t, values[i]}
	}
	return Table{
		Name:    name,
		Columns: []string{"T (K)", column},
		Blocks:  []Block{{Rows: rows}},
	}
}

func (r *Result) helmholtzTable() Table {
	blocks := make([]Block, len(r.Temperatures))
	for i, t := range r.Temperatures {
		rows := make([][]float64, len(r.Volumes))
		for v, vol := range r.Volumes {
			rows[v] = []float64{vol, r.Helmholtz[i][v]}
		}
		blocks[i] = Block{Label: fmt.Sprintf("Temperature: %g", t), Rows: rows}
	}
	return Table{
		Name:    TableHelmholtzVolume,
		Columns: []string{"volume (A^3)", "F (eV)"},
		Blocks:  blocks,
	}
}
