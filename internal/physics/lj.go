package physics

import (
	"math"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// LennardJones is the 12-6 pair potential truncated at a hard cutoff,
// V(r) = c12/r^12 - c6/r^6 for r <= rcut and zero beyond.
type LennardJones struct {
	C12  float64
	C6   float64
	Rcsq float64
}

func NewLennardJones(d dynamo.Derived) LennardJones {
	return LennardJones{C12: d.C12, C6: d.C6, Rcsq: d.Rcsq}
}

// Pair evaluates the potential at squared distance rsq. The force on the
// first particle is ffac times the displacement pointing away from the
// second one. ok is false for pairs beyond the cutoff.
func (lj LennardJones) Pair(rsq float64) (ffac, epot float64, ok bool) {
	if rsq > lj.Rcsq {
		return 0, 0, false
	}
	r6 := 1.0 / (rsq * rsq * rsq)
	ffac = (12.0*lj.C12*r6 - 6.0*lj.C6) * r6 / rsq
	epot = r6 * (lj.C12*r6 - lj.C6)
	return ffac, epot, true
}

// MinImage maps a displacement component onto its nearest periodic image,
// shifting it by whole box lengths until it lies in [-boxby2, boxby2].
// Non-finite input yields NaN.
func MinImage(x, box, boxby2 float64) float64 {
	if x > boxby2 {
		x -= box * math.Ceil((x-boxby2)/box)
	} else if x < -boxby2 {
		x += box * math.Ceil((-boxby2-x)/box)
	}
	return x
}
