package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// Store keeps one directory per run under baseDir.
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
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Device    string             `json:"device"`
	WorkItems int                `json:"work_items"`
	NumAtoms  int                `json:"natoms"`
	NSteps    int                `json:"nsteps"`
	NPrint    int                `json:"nprint"`
	Dt        float64            `json:"dt"`
	Box       float64            `json:"box"`
	Rcut      float64            `json:"rcut"`
	Metrics   map[string]float64 `json:"metrics"`
}

var energyHeader = []string{"step", "temp", "ekin", "epot", "etot"}

// Save writes metadata.json and energies.csv for a run and returns its id.
func (s *Store) Save(meta RunMetadata, frames []dynamo.State) (string, error) {
	if meta.Name == "" {
		meta.Name = "ljmd"
	}
	meta.Timestamp = time.Now()
	runID := fmt.Sprintf("%s_%d", meta.Name, meta.Timestamp.UnixMilli())
	runDir := filepath.Join(s.baseDir, runID)
	for i := 1; ; i++ {
		if _, err := os.Stat(runDir); os.IsNotExist(err) {
			break
		}
		runID = fmt.Sprintf("%s_%d_%d", meta.Name, meta.Timestamp.UnixMilli(), i)
		runDir = filepath.Join(s.baseDir, runID)
	}
	meta.ID = runID

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
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

	csvFile, err := os.Create(filepath.Join(runDir, "energies.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(energyHeader); err != nil {
		return "", err
	}
	for _, f := range frames {
		row := []string{
			strconv.Itoa(f.Step),
			strconv.FormatFloat(f.Temp, 'g', -1, 64),
			strconv.FormatFloat(f.Ekin, 'g', -1, 64),
			strconv.FormatFloat(f.Epot, 'g', -1, 64),
			strconv.FormatFloat(f.Etot(), 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return runID, nil
}

// List returns the metadata of every stored run, oldest first.
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

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

// LoadEnergies reads back the frames written by Save.
func (s *Store) LoadEnergies(runID string) ([]dynamo.State, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "energies.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []dynamo.State{}, nil
	}

	frames := make([]dynamo.State, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 4 {
			return nil, fmt.Errorf("energies.csv line %d: %d fields", i+2, len(rec))
		}
		step, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("energies.csv line %d: %w", i+2, err)
		}
		var vals [3]float64
		for j := range vals {
			if vals[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, fmt.Errorf("energies.csv line %d: %w", i+2, err)
			}
		}
		frames = append(frames, dynamo.State{Step: step, Temp: vals[0], Ekin: vals[1], Epot: vals[2]})
	}
	return frames, nil
}
