package physics

import (
	"fmt"

	"github.com/san-kum/ljmd/internal/compute"
)

// ZeroKernel clears a set of per-particle buffers.
type ZeroKernel struct {
	Buffers []*compute.Buffer
	N       int
}

func (k *ZeroKernel) Name() string { return "azzero" }

func (k *ZeroKernel) Exec(item, size int) error {
	for _, b := range k.Buffers {
		v := b.View()
		for i := item; i < k.N; i += size {
			v[i] = 0
		}
	}
	return nil
}

// ForceKernel accumulates Lennard-Jones forces for the particles owned by a
// work item and writes that item's share of the potential energy to Epot.
//
// Every owned particle visits all N-1 partners, so each force slot has a
// single writer and no pair contribution is shared between work items.
type ForceKernel struct {
	Fx, Fy, Fz *compute.Buffer
	Rx, Ry, Rz *compute.Buffer
	Epot       *compute.Buffer
	N          int
	LJ         LennardJones
	Box        float64
	BoxBy2     float64
}

func (k *ForceKernel) Name() string { return "force" }

func (k *ForceKernel) Exec(item, size int) error {
	ep := k.Epot.View()
	if item >= len(ep) {
		return fmt.Errorf("epot partials hold %d slots, item %d out of range", len(ep), item)
	}

	rx, ry, rz := k.Rx.View(), k.Ry.View(), k.Rz.View()
	fx, fy, fz := k.Fx.View(), k.Fy.View(), k.Fz.View()

	epot := 0.0
	for i := item; i < k.N; i += size {
		xi, yi, zi := rx[i], ry[i], rz[i]
		var fxi, fyi, fzi float64

		for j := 0; j < k.N; j++ {
			if j == i {
				continue
			}
			dx := MinImage(xi-rx[j], k.Box, k.BoxBy2)
			dy := MinImage(yi-ry[j], k.Box, k.BoxBy2)
			dz := MinImage(zi-rz[j], k.Box, k.BoxBy2)

			ffac, e, ok := k.LJ.Pair(dx*dx + dy*dy + dz*dz)
			if !ok {
				continue
			}
			// both orderings of the pair are visited
			epot += 0.5 * e
			fxi += dx * ffac
			fyi += dy * ffac
			fzi += dz * ffac
		}

		fx[i] += fxi
		fy[i] += fyi
		fz[i] += fzi
	}
	ep[item] = epot
	return nil
}
