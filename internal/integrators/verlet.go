package integrators

import "github.com/san-kum/ljmd/internal/compute"

// VerletFirst is the first half of a velocity-Verlet step: a half kick with
// the current force followed by a full drift.
//
// Positions change here, so it must run before the next force evaluation.
type VerletFirst struct {
	Rx, Ry, Rz *compute.Buffer
	Vx, Vy, Vz *compute.Buffer
	Fx, Fy, Fz *compute.Buffer
	N          int
	Dt         float64
	Dtmf       float64
}

func (v *VerletFirst) Name() string { return "verlet_first" }

func (v *VerletFirst) Exec(item, size int) error {
	rx, ry, rz := v.Rx.View(), v.Ry.View(), v.Rz.View()
	vx, vy, vz := v.Vx.View(), v.Vy.View(), v.Vz.View()
	fx, fy, fz := v.Fx.View(), v.Fy.View(), v.Fz.View()

	for i := item; i < v.N; i += size {
		vx[i] += v.Dtmf * fx[i]
		vy[i] += v.Dtmf * fy[i]
		vz[i] += v.Dtmf * fz[i]
		rx[i] += v.Dt * vx[i]
		ry[i] += v.Dt * vy[i]
		rz[i] += v.Dt * vz[i]
	}
	return nil
}

// VerletSecond applies the remaining half kick with the freshly computed force.
type VerletSecond struct {
	Vx, Vy, Vz *compute.Buffer
	Fx, Fy, Fz *compute.Buffer
	N          int
	Dtmf       float64
}

func (v *VerletSecond) Name() string { return "verlet_second" }

func (v *VerletSecond) Exec(item, size int) error {
	vx, vy, vz := v.Vx.View(), v.Vy.View(), v.Vz.View()
	fx, fy, fz := v.Fx.View(), v.Fy.View(), v.Fz.View()

	for i := item; i < v.N; i += size {
		vx[i] += v.Dtmf * fx[i]
		vy[i] += v.Dtmf * fy[i]
		vz[i] += v.Dtmf * fz[i]
	}
	return nil
}
