// Package storage persists integration runs under a data directory, one
// subdirectory per run holding metadata.json and states.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kestrel-sim/alphadyn/internal/alpha"
	"github.com/kestrel-sim/alphadyn/internal/config"
)

var stateHeader = []string{
	"time",
	"x", "y", "z", "q0", "q1", "q2", "q3",
	"vx", "vy", "vz", "wx", "wy", "wz",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID              string             `json:"id"`
	Model           string             `json:"model"`
	Timestamp       time.Time          `json:"timestamp"`
	AlphaF          float64            `json:"alpha_f"`
	AlphaM          float64            `json:"alpha_m"`
	Beta            float64            `json:"beta"`
	Gamma           float64            `json:"gamma"`
	Precondition    bool               `json:"precondition"`
	StepSize        float64            `json:"step_size"`
	Steps           int                `json:"steps"`
	Converged       bool               `json:"converged"`
	TotalIterations int                `json:"total_iterations"`
	Metrics         map[string]float64 `json:"metrics"`
}

// Save writes a completed run and returns its generated ID.
func (s *Store) Save(cfg *config.Config, result *alpha.Result, metricValues map[string]float64) (string, error) {
	runID := fmt.Sprintf("%s_%d", cfg.Model, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:              runID,
		Model:           cfg.Model,
		Timestamp:       time.Now(),
		AlphaF:          cfg.AlphaF,
		AlphaM:          cfg.AlphaM,
		Beta:            cfg.Beta,
		Gamma:           cfg.Gamma,
		Precondition:    cfg.Precondition,
		StepSize:        cfg.Time.Step,
		Steps:           cfg.Time.Steps,
		Converged:       result.Converged(),
		TotalIterations: result.TotalIterations,
		Metrics:         metricValues,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if len(result.States) == 0 {
		return runID, nil
	}

	header := stateHeader
	if n := 1 + len(result.States[0].GenCoords) + len(result.States[0].Velocity); n != len(stateHeader) {
		// Reduced systems get generic column names.
		header = []string{"time"}
		for i := range result.States[0].GenCoords {
			header = append(header, fmt.Sprintf("q%d", i))
		}
		for i := range result.States[0].Velocity {
			header = append(header, fmt.Sprintf("v%d", i))
		}
	}
	if err := w.Write(header); err != nil {
		return "", err
	}

	for i, state := range result.States {
		t := cfg.Time.Start + float64(i)*cfg.Time.Step
		row := []string{strconv.FormatFloat(t, 'f', 6, 64)}
		for _, val := range state.GenCoords {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		for _, val := range state.Velocity {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

// List returns the metadata of every stored run.
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

		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}

	return runs, nil
}

// Load returns the metadata of one run.
func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadStates reads back the per-step rows of a run: the header, the times,
// and one row of values per state.
func (s *Store) LoadStates(runID string) ([]string, []float64, [][]float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, nil, err
	}
	if len(records) < 2 {
		return nil, []float64{}, [][]float64{}, nil
	}

	header := records[0][1:]
	times := make([]float64, 0, len(records)-1)
	rows := make([][]float64, 0, len(records)-1)

	for _, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, nil, err
		}
		row := make([]float64, len(record)-1)
		for j, field := range record[1:] {
			if row[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, nil, nil, err
			}
		}
		times = append(times, t)
		rows = append(rows, row)
	}

	return header, times, rows, nil
}
