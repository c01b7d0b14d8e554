package config

import "sort"

var Presets = map[string]*Config{
	"dimer": {
		NumAtoms: 2, Mass: 39.95, Epsilon: 0.2379, Sigma: 3.401, Rcut: 8.0, Box: 20.0,
		Trajectory: "dimer.xyz", Energy: "dimer.dat",
		NSteps: 1, Dt: 5.0, NPrint: 1,
		Positions: [][3]float64{{0, 0, 0}, {4, 0, 0}},
	},
	"argon108": {
		NumAtoms: 108, Mass: DefaultMass, Epsilon: DefaultEpsilon, Sigma: DefaultSigma,
		Rcut: DefaultRcut, Box: DefaultBox,
		Trajectory: "argon_108.xyz", Energy: "argon_108.dat",
		NSteps: DefaultNSteps, Dt: DefaultDt, NPrint: DefaultNPrint,
		Temperature: 120.0, Seed: 1,
	},
	"argon_dilute": {
		NumAtoms: 64, Mass: DefaultMass, Epsilon: DefaultEpsilon, Sigma: DefaultSigma,
		Rcut: 12.0, Box: 40.0,
		Trajectory: "argon_dilute.xyz", Energy: "argon_dilute.dat",
		NSteps: 2000, Dt: 2.0, NPrint: 100,
		Temperature: 50.0, Seed: 7,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	c.Positions = append([][3]float64(nil), cfg.Positions...)
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
