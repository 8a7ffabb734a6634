package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/qhalab/internal/config"
	"github.com/san-kum/qhalab/internal/qha"
)

var ErrNoTable = errors.New("storage: table not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Float is a float64 that encodes NaN as JSON null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *Float) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

type FitRecord struct {
	Temperature float64 `json:"temperature"`
	E0          Float   `json:"e0"`
	B0          Float   `json:"b0"`
	B0Prime     Float   `json:"b0_prime"`
	V0          Float   `json:"v0"`
	SSE         Float   `json:"sse"`
	Iterations  int     `json:"iterations"`
	Error       string  `json:"error,omitempty"`
}

func (r FitRecord) OK() bool { return r.Error == "" }

type RunMetadata struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	EOS          string         `json:"eos"`
	Pressure     float64        `json:"pressure"`
	Config       *config.Config `json:"config,omitempty"`
	Volumes      []float64      `json:"volumes"`
	Excluded     []int          `json:"excluded,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
	Failures     []string       `json:"failures,omitempty"`
	Anomalies    []qha.Anomaly  `json:"anomalies,omitempty"`
	Fits         []FitRecord    `json:"fits"`
	Tables       []string       `json:"tables"`
	Temperatures int            `json:"temperatures"`
}

// NewMetadata summarizes res for the run directory.
func NewMetadata(id string, cfg *config.Config, res *qha.Result) RunMetadata {
	meta := RunMetadata{
		ID:           id,
		Timestamp:    time.Now(),
		EOS:          res.EOS.String(),
		Pressure:     res.Pressure,
		Config:       cfg,
		Volumes:      res.Volumes,
		Excluded:     res.Excluded,
		Anomalies:    res.Anomalies(),
		Fits:         make([]FitRecord, len(res.Fits)),
		Tables:       qha.TableNames(),
		Temperatures: res.Len(),
	}
	for _, w := range res.Warnings {
		meta.Warnings = append(meta.Warnings, w.Error())
	}
	for _, f := range res.Failures {
		meta.Failures = append(meta.Failures, f.Error())
	}
	for i, f := range res.Fits {
		rec := FitRecord{
			Temperature: f.Temperature,
			E0:          Float(f.Params.E0),
			B0:          Float(f.Params.B0),
			B0Prime:     Float(f.Params.B0Prime),
			V0:          Float(f.Params.V0),
			SSE:         Float(f.SSE),
			Iterations:  f.Iterations,
		}
		if f.Err != nil {
			rec.Error = f.Err.Error()
			rec.SSE = Float(math.NaN())
		}
		meta.Fits[i] = rec
	}
	return meta
}

// Save writes metadata.json and one .dat file per output table.
func (s *Store) Save(cfg *config.Config, res *qha.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", res.EOS, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := NewMetadata(runID, cfg, res)

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	for _, t := range res.Tables() {
		if err := writeTableFile(filepath.Join(runDir, t.Name+".dat"), t); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func writeTableFile(path string, t qha.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WriteTable(w, t); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}

		runs = append(runs, *meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadTable reads one saved output table back.
func (s *Store) LoadTable(runID, name string) (qha.Table, error) {
	path := filepath.Join(s.baseDir, runID, name+".dat")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return qha.Table{}, fmt.Errorf("%w: %s in run %s", ErrNoTable, name, runID)
		}
		return qha.Table{}, err
	}
	defer file.Close()

	t, err := ReadTable(file)
	if err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = name
	return t, nil
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseRow(fields []string) ([]float64, error) {
	row := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func splitHeader(line string) []string {
	var cols []string
	for _, c := range strings.Split(line, "\t") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}
