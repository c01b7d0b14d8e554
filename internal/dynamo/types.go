package dynamo

import (
	"fmt"
	"math"
)

// Physical constants in the kcal/mol, Angstrom, amu unit system.
const (
	// KBoltz is the Boltzmann constant in kcal/mol/K.
	KBoltz = 0.0019872067
	// MvSq2E converts m*v^2 (amu*A^2/fs^2) into kcal/mol.
	MvSq2E = 2390.05736153349
)

// Params holds the physical inputs of a run.
type Params struct {
	NumAtoms int
	Mass     float64
	Epsilon  float64
	Sigma    float64
	Rcut     float64
	Box      float64
	Dt       float64
	NSteps   int
	NPrint   int
}

// Derived holds the constants precomputed once from Params.
type Derived struct {
	C12    float64
	C6     float64
	Rcsq   float64
	BoxBy2 float64
	Dtmf   float64
}

func (p Params) Derive() Derived {
	return Derived{
		C12:    4.0 * p.Epsilon * math.Pow(p.Sigma, 12.0),
		C6:     4.0 * p.Epsilon * math.Pow(p.Sigma, 6.0),
		Rcsq:   p.Rcut * p.Rcut,
		BoxBy2: 0.5 * p.Box,
		Dtmf:   0.5 * p.Dt / MvSq2E / p.Mass,
	}
}

// DegreesOfFreedom excludes the three components of total linear momentum.
func (p Params) DegreesOfFreedom() float64 {
	return 3.0*float64(p.NumAtoms) - 3.0
}

// Particles is a host-side staging copy of the per-particle arrays.
type Particles struct {
	Rx, Ry, Rz []float64
	Vx, Vy, Vz []float64
}

func NewParticles(n int) *Particles {
	return &Particles{
		Rx: make([]float64, n),
		Ry: make([]float64, n),
		Rz: make([]float64, n),
		Vx: make([]float64, n),
		Vy: make([]float64, n),
		Vz: make([]float64, n),
	}
}

func (p *Particles) Len() int { return len(p.Rx) }

func (p *Particles) Clone() *Particles {
	c := NewParticles(p.Len())
	copy(c.Rx, p.Rx)
	copy(c.Ry, p.Ry)
	copy(c.Rz, p.Rz)
	copy(c.Vx, p.Vx)
	copy(c.Vy, p.Vy)
	copy(c.Vz, p.Vz)
	return c
}

// IsValid reports whether every coordinate and velocity is finite.
func (p *Particles) IsValid() bool {
	for _, arr := range [][]float64{p.Rx, p.Ry, p.Rz, p.Vx, p.Vy, p.Vz} {
		for _, v := range arr {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// State is the mutable simulation context threaded through the driver.
type State struct {
	Step int
	Epot float64
	Ekin float64
	Temp float64
}

func (s State) Etot() float64 { return s.Ekin + s.Epot }

func (s State) String() string {
	return fmt.Sprintf("step %d: temp=%.4f ekin=%.6f epot=%.6f etot=%.6f",
		s.Step, s.Temp, s.Ekin, s.Epot, s.Etot())
}

// Frame is one output sample: the reported state plus the position snapshot
// it was captured with.
type Frame struct {
	State
	Rx, Ry, Rz []float64
}

// Observer receives every output frame of a run. The position slices of a
// Frame are reused by the driver and are only valid during OnFrame.
type Observer interface {
	OnFrame(f Frame) error
}
