package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/qhalab/internal/config"
	"github.com/san-kum/qhalab/internal/eos"
	"github.com/san-kum/qhalab/internal/qha"
)

func newRunCmd() *cobra.Command {
	configFile = ""
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	return cmd
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qha.yaml")
	require.NoError(t, os.WriteFile(path, []byte("eos: murnaghan\npressure: 1\nt_max: 800\n"), 0644))

	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("config", path))
	require.NoError(t, cmd.Flags().Set("pressure", "3"))

	cfg, err := loadConfig(cmd, []string{"e-v.dat", "t0.yaml", "t1.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "murnaghan", cfg.EOS)
	assert.Equal(t, 3.0, cfg.Pressure)
	assert.Equal(t, 800.0, cfg.TMax)
	assert.Equal(t, "e-v.dat", cfg.EVFile)
	assert.Equal(t, []string{"t0.yaml", "t1.yaml"}, cfg.ThermalFiles)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(newRunCmd(), nil)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadConfigRejectsBadEOS(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Set("eos", "einstein"))
	_, err := loadConfig(cmd, nil)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestSummaryRows(t *testing.T) {
	res := &qha.Result{
		Temperatures: []float64{0, 100, 300, 500},
		Volume:       []float64{1, 2, 3, 4},
	}
	assert.Equal(t, []int{0, 2, 3}, summaryRows(res))

	res = &qha.Result{Temperatures: []float64{0}, Volume: []float64{1}}
	assert.Equal(t, []int{0}, summaryRows(res))
	assert.Nil(t, summaryRows(&qha.Result{}))
}

func TestNum(t *testing.T) {
	assert.Equal(t, "nan", num(math.NaN(), "%.2f"))
	assert.Equal(t, "1.50", num(1.5, "%.2f"))
}

func TestVolumeAt(t *testing.T) {
	c := qha.DefaultConstants()
	p := eos.Params{E0: -10.84, B0: 0.55, B0Prime: 4.3, V0: 40.9}

	assert.InDelta(t, p.V0, volumeAt(eos.Vinet, p, 0, c), 1e-8)

	v := volumeAt(eos.Vinet, p, 10, c)
	assert.Less(t, v, p.V0)
	assert.InDelta(t, c.GPaToEvA3(10), eos.Vinet.Pressure(v, p), 1e-9)

	bad := p
	bad.B0 = -1
	assert.True(t, math.IsNaN(volumeAt(eos.Vinet, bad, 0, c)))
}

func TestWriteBulk(t *testing.T) {
	p := eos.Params{E0: -10.84, B0: 0.55, B0Prime: 4.3, V0: 40.9}
	var volumes, energies []float64
	for i := 0; i < 11; i++ {
		v := 36 + float64(i)
		volumes = append(volumes, v)
		energies = append(energies, eos.Vinet.Energy(v, p))
	}

	var buf bytes.Buffer
	require.NoError(t, writeBulk(&buf, volumes, energies, 5))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1+len(eos.Kinds()))
	assert.Contains(t, lines[0], "V(5 GPa)")
	for i, k := range eos.Kinds() {
		fields := strings.Fields(lines[i+1])
		require.NotEmpty(t, fields)
		assert.Equal(t, k.String(), fields[0])
		assert.NotContains(t, lines[i+1], "failed")
		assert.NotContains(t, lines[i+1], "nan")
	}
}
