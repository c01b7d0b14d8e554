package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/ljmd/internal/compute"
)

type buffers struct {
	dev        compute.Backend
	rx, ry, rz *compute.Buffer
	vx, vy, vz *compute.Buffer
	fx, fy, fz *compute.Buffer
}

func newBuffers(t *testing.T, n, items int) *buffers {
	t.Helper()
	dev, err := compute.Open(compute.CPU, items)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(dev.Release)

	b := &buffers{dev: dev}
	for _, a := range []struct {
		name string
		dst  **compute.Buffer
	}{
		{"rx", &b.rx}, {"ry", &b.ry}, {"rz", &b.rz},
		{"vx", &b.vx}, {"vy", &b.vy}, {"vz", &b.vz},
		{"fx", &b.fx}, {"fy", &b.fy}, {"fz", &b.fz},
	} {
		if *a.dst, err = dev.Alloc(a.name, n); err != nil {
			t.Fatalf("alloc failed: %v", err)
		}
	}
	return b
}

func (b *buffers) set(t *testing.T, dst *compute.Buffer, v []float64) {
	t.Helper()
	if err := b.dev.Write(dst, v); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

func (b *buffers) get(t *testing.T, src *compute.Buffer) []float64 {
	t.Helper()
	out := make([]float64, src.Len())
	if err := b.dev.Read(src, out); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return out
}

func TestVerletFirst(t *testing.T) {
	const (
		dt   = 2.0
		dtmf = 0.01
	)
	b := newBuffers(t, 3, 2)
	b.set(t, b.rx, []float64{0, 1, 2})
	b.set(t, b.vx, []float64{1, 0, -1})
	b.set(t, b.fx, []float64{10, 20, 30})
	b.set(t, b.fy, []float64{1, 1, 1})

	k := &VerletFirst{
		Rx: b.rx, Ry: b.ry, Rz: b.rz,
		Vx: b.vx, Vy: b.vy, Vz: b.vz,
		Fx: b.fx, Fy: b.fy, Fz: b.fz,
		N: 3, Dt: dt, Dtmf: dtmf,
	}
	if err := b.dev.Build(compute.NewProgram("verlet", "", k)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := b.dev.Launch(k); err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	vx, rx := b.get(t, b.vx), b.get(t, b.rx)
	vy, ry := b.get(t, b.vy), b.get(t, b.ry)
	wantV := []float64{1.1, 0.2, -0.7}
	for i := range wantV {
		if math.Abs(vx[i]-wantV[i]) > 1e-12 {
			t.Errorf("vx[%d] = %f, want %f", i, vx[i], wantV[i])
		}
		wantR := float64(i) + dt*wantV[i]
		if math.Abs(rx[i]-wantR) > 1e-12 {
			t.Errorf("rx[%d] = %f, want %f", i, rx[i], wantR)
		}
		if math.Abs(vy[i]-0.01) > 1e-12 || math.Abs(ry[i]-0.02) > 1e-12 {
			t.Errorf("y[%d]: v=%f r=%f", i, vy[i], ry[i])
		}
	}
}

func TestVerletSecondLeavesPositions(t *testing.T) {
	b := newBuffers(t, 2, 4)
	b.set(t, b.rx, []float64{5, 6})
	b.set(t, b.vz, []float64{0.5, -0.5})
	b.set(t, b.fz, []float64{-100, 100})

	k := &VerletSecond{
		Vx: b.vx, Vy: b.vy, Vz: b.vz,
		Fx: b.fx, Fy: b.fy, Fz: b.fz,
		N: 2, Dtmf: 0.001,
	}
	if err := b.dev.Build(compute.NewProgram("verlet", "", k)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if err := b.dev.Launch(k); err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	vz, rx := b.get(t, b.vz), b.get(t, b.rx)
	if math.Abs(vz[0]-0.4) > 1e-12 || math.Abs(vz[1]+0.4) > 1e-12 {
		t.Errorf("unexpected velocities %v", vz)
	}
	if rx[0] != 5 || rx[1] != 6 {
		t.Errorf("positions changed: %v", rx)
	}
}

// A full split step under a constant force is exact for the trajectory of
// uniform acceleration.
func TestSplitStepConstantForce(t *testing.T) {
	const (
		dt    = 1.0
		dtmf  = 0.05
		steps = 10
	)
	b := newBuffers(t, 1, 1)
	b.set(t, b.fx, []float64{1})

	first := &VerletFirst{Rx: b.rx, Ry: b.ry, Rz: b.rz, Vx: b.vx, Vy: b.vy, Vz: b.vz,
		Fx: b.fx, Fy: b.fy, Fz: b.fz, N: 1, Dt: dt, Dtmf: dtmf}
	second := &VerletSecond{Vx: b.vx, Vy: b.vy, Vz: b.vz, Fx: b.fx, Fy: b.fy, Fz: b.fz, N: 1, Dtmf: dtmf}
	if err := b.dev.Build(compute.NewProgram("verlet", "", first, second)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	for i := 0; i < steps; i++ {
		if err := b.dev.Launch(first); err != nil {
			t.Fatal(err)
		}
		if err := b.dev.Launch(second); err != nil {
			t.Fatal(err)
		}
	}

	// a = 2*dtmf/dt per unit force
	a := 2 * dtmf / dt
	tEnd := float64(steps) * dt
	if got, want := b.get(t, b.vx)[0], a*tEnd; math.Abs(got-want) > 1e-12 {
		t.Errorf("velocity %f, want %f", got, want)
	}
	if got, want := b.get(t, b.rx)[0], 0.5*a*tEnd*tEnd; math.Abs(got-want) > 1e-12 {
		t.Errorf("position %f, want %f", got, want)
	}
}
