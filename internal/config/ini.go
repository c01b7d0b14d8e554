package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// ExampleINI is a complete run description in the ini format read by LoadINI.
const ExampleINI = `[Run]

# Lennard-Jones argon, kcal/mol, Angstrom, amu and fs.
NAtoms = 108
Mass = 39.948
Epsilon = 0.2379
Sigma = 3.405
Rcut = 8.5
Box = 17.1580

# Leave Restart empty to start from a lattice.
Restart = argon_108.rest
Trajectory = argon_108.xyz
Energy = argon_108.dat

NSteps = 10000
Dt = 5.0
NPrint = 100

# Only used without a restart file.
# Temperature = 120.0
# Seed = 1
`

type iniRun struct {
	NAtoms      int
	Mass        float64
	Epsilon     float64
	Sigma       float64
	Rcut        float64
	Box         float64
	Restart     string
	Trajectory  string
	Energy      string
	NSteps      int
	Dt          float64
	NPrint      int
	Temperature float64
	Seed        int64
}

type iniFile struct {
	Run iniRun
}

func (f *iniFile) config() *Config {
	r := f.Run
	return &Config{
		NumAtoms: r.NAtoms, Mass: r.Mass, Epsilon: r.Epsilon, Sigma: r.Sigma,
		Rcut: r.Rcut, Box: r.Box,
		Restart: r.Restart, Trajectory: r.Trajectory, Energy: r.Energy,
		NSteps: r.NSteps, Dt: r.Dt, NPrint: r.NPrint,
		Temperature: r.Temperature, Seed: r.Seed,
	}
}

func defaultINI() *iniFile {
	d := DefaultConfig()
	return &iniFile{Run: iniRun{
		NAtoms: d.NumAtoms, Mass: d.Mass, Epsilon: d.Epsilon, Sigma: d.Sigma,
		Rcut: d.Rcut, Box: d.Box,
		Trajectory: d.Trajectory, Energy: d.Energy,
		NSteps: d.NSteps, Dt: d.Dt, NPrint: d.NPrint,
	}}
}

// LoadINI reads the [Run] section of an ini file. Unset variables keep
// their defaults.
func LoadINI(path string) (*Config, error) {
	f := defaultINI()
	if err := gcfg.ReadFileInto(f, path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrInvalidInput, path, err)
	}
	return f.config(), nil
}

// ParseINI is LoadINI for configuration held in memory.
func ParseINI(text string) (*Config, error) {
	f := defaultINI()
	if err := gcfg.ReadStringInto(f, text); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrInvalidInput, err)
	}
	return f.config(), nil
}
