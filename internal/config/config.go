package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// Argon defaults in kcal/mol, Angstrom, amu and fs.
const (
	DefaultNumAtoms = 108
	DefaultMass     = 39.948
	DefaultEpsilon  = 0.2379
	DefaultSigma    = 3.405
	DefaultRcut     = 8.5
	DefaultBox      = 17.1580
	DefaultDt       = 5.0
	DefaultNSteps   = 10000
	DefaultNPrint   = 100
	DefaultTraj     = "argon.xyz"
	DefaultEnergy   = "argon.dat"
)

type Config struct {
	NumAtoms   int     `yaml:"natoms"`
	Mass       float64 `yaml:"mass"`
	Epsilon    float64 `yaml:"epsilon"`
	Sigma      float64 `yaml:"sigma"`
	Rcut       float64 `yaml:"rcut"`
	Box        float64 `yaml:"box"`
	Restart    string  `yaml:"restart"`
	Trajectory string  `yaml:"trajectory"`
	Energy     string  `yaml:"energy"`
	NSteps     int     `yaml:"nsteps"`
	Dt         float64 `yaml:"dt"`
	NPrint     int     `yaml:"nprint"`

	// Used only when Restart is empty.
	Positions   [][3]float64 `yaml:"positions,omitempty"`
	Temperature float64      `yaml:"temperature,omitempty"`
	Seed        int64        `yaml:"seed,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		NumAtoms:   DefaultNumAtoms,
		Mass:       DefaultMass,
		Epsilon:    DefaultEpsilon,
		Sigma:      DefaultSigma,
		Rcut:       DefaultRcut,
		Box:        DefaultBox,
		Trajectory: DefaultTraj,
		Energy:     DefaultEnergy,
		NSteps:     DefaultNSteps,
		Dt:         DefaultDt,
		NPrint:     DefaultNPrint,
	}
}

// Load reads a yaml run configuration, or an ini one when the file
// extension is .ini or .cfg.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".cfg", ".gcfg":
		return LoadINI(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrInvalidInput, path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Params() dynamo.Params {
	return dynamo.Params{
		NumAtoms: c.NumAtoms,
		Mass:     c.Mass,
		Epsilon:  c.Epsilon,
		Sigma:    c.Sigma,
		Rcut:     c.Rcut,
		Box:      c.Box,
		Dt:       c.Dt,
		NSteps:   c.NSteps,
		NPrint:   c.NPrint,
	}
}

// Validate rejects runs the driver cannot execute. Physically degenerate
// values such as a zero cutoff are accepted.
func (c *Config) Validate() error {
	switch {
	case c.NumAtoms < 2:
		return fmt.Errorf("%w: natoms must be at least 2, got %d", dynamo.ErrInvalidInput, c.NumAtoms)
	case c.NSteps < 0:
		return fmt.Errorf("%w: nsteps must not be negative, got %d", dynamo.ErrInvalidInput, c.NSteps)
	case c.NPrint < 1:
		return fmt.Errorf("%w: nprint must be at least 1, got %d", dynamo.ErrInvalidInput, c.NPrint)
	case c.Dt <= 0:
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidInput, c.Dt)
	case c.Restart == "" && len(c.Positions) > 0 && len(c.Positions) != c.NumAtoms:
		return fmt.Errorf("%w: %d inline positions for %d atoms", dynamo.ErrInvalidInput, len(c.Positions), c.NumAtoms)
	}
	return nil
}
