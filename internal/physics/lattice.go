package physics

import (
	"math"
	"math/rand"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// Lattice places n particles on a simple cubic lattice filling the box,
// with zero velocities.
func Lattice(n int, box float64) *dynamo.Particles {
	p := dynamo.NewParticles(n)
	side := int(math.Ceil(math.Cbrt(float64(n))))
	if side < 1 {
		side = 1
	}
	spacing := box / float64(side)

	idx := 0
	for ix := 0; ix < side && idx < n; ix++ {
		for iy := 0; iy < side && idx < n; iy++ {
			for iz := 0; iz < side && idx < n; iz++ {
				p.Rx[idx] = (float64(ix) + 0.5) * spacing
				p.Ry[idx] = (float64(iy) + 0.5) * spacing
				p.Rz[idx] = (float64(iz) + 0.5) * spacing
				idx++
			}
		}
	}
	return p
}

// Thermalize draws Maxwell-Boltzmann velocities for temperature temp (K),
// removes the center-of-mass velocity and rescales to hit temp exactly.
func Thermalize(p *dynamo.Particles, temp, mass float64, rng *rand.Rand) {
	n := p.Len()
	if n < 2 || temp <= 0 {
		return
	}
	sigma := math.Sqrt(dynamo.KBoltz * temp / (mass * dynamo.MvSq2E))

	var cx, cy, cz float64
	for i := 0; i < n; i++ {
		p.Vx[i] = rng.NormFloat64() * sigma
		p.Vy[i] = rng.NormFloat64() * sigma
		p.Vz[i] = rng.NormFloat64() * sigma
		cx += p.Vx[i]
		cy += p.Vy[i]
		cz += p.Vz[i]
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)

	sum := 0.0
	for i := 0; i < n; i++ {
		p.Vx[i] -= cx
		p.Vy[i] -= cy
		p.Vz[i] -= cz
		sum += p.Vx[i]*p.Vx[i] + p.Vy[i]*p.Vy[i] + p.Vz[i]*p.Vz[i]
	}
	if sum == 0 {
		return
	}

	ekin := 0.5 * dynamo.MvSq2E * mass * sum
	current := 2.0 * ekin / ((3.0*float64(n) - 3.0) * dynamo.KBoltz)
	scale := math.Sqrt(temp / current)
	for i := 0; i < n; i++ {
		p.Vx[i] *= scale
		p.Vy[i] *= scale
		p.Vz[i] *= scale
	}
}
