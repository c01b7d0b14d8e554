package metrics

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// Fold sums the per-work-item partials gathered from the device.
func Fold(partials []float64) float64 {
	return floats.Sum(partials)
}

// KineticEnergy converts a folded sum of squared speeds into kcal/mol.
func KineticEnergy(sumV2, mass float64) float64 {
	return 0.5 * dynamo.MvSq2E * mass * sumV2
}

// Temperature follows from equipartition over 3N-3 degrees of freedom.
// It is undefined for fewer than two particles.
func Temperature(ekin float64, natoms int) float64 {
	return 2.0 * ekin / (3.0*float64(natoms) - 3.0) / dynamo.KBoltz
}

// Finalize fills the energy aggregates of s from the two partial arrays.
func Finalize(s *dynamo.State, p dynamo.Params, epotPartials, ekinPartials []float64) {
	s.Epot = Fold(epotPartials)
	s.Ekin = KineticEnergy(Fold(ekinPartials), p.Mass)
	s.Temp = Temperature(s.Ekin, p.NumAtoms)
}
