package sim_test

import (
	"context"
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/physics"
	"github.com/san-kum/ljmd/internal/sim"
)

type recorder struct {
	frames []dynamo.Frame
}

func (r *recorder) OnFrame(f dynamo.Frame) error {
	r.frames = append(r.frames, dynamo.Frame{
		State: f.State,
		Rx:    append([]float64(nil), f.Rx...),
		Ry:    append([]float64(nil), f.Ry...),
		Rz:    append([]float64(nil), f.Rz...),
	})
	return nil
}

func (r *recorder) steps() []int {
	out := make([]int, len(r.frames))
	for i, f := range r.frames {
		out[i] = f.Step
	}
	return out
}

type failingObserver struct{ err error }

func (o failingObserver) OnFrame(dynamo.Frame) error { return o.err }

// flakyDevice fails the failOn-th launch of one kernel.
type flakyDevice struct {
	compute.Backend
	kernel string
	failOn int
	calls  int
}

func (d *flakyDevice) Launch(k compute.Kernel) error {
	if k.Name() == d.kernel {
		d.calls++
		if d.calls == d.failOn {
			return &compute.Error{Op: "launch", Target: k.Name(), Err: compute.ErrDispatch}
		}
	}
	return d.Backend.Launch(k)
}

func dimerParams() dynamo.Params {
	return dynamo.Params{
		NumAtoms: 2, Mass: 39.95, Epsilon: 0.2379, Sigma: 3.401,
		Rcut: 8.0, Box: 20.0, Dt: 5.0, NSteps: 1, NPrint: 1,
	}
}

func dimer() *dynamo.Particles {
	p := dynamo.NewParticles(2)
	p.Rx[1] = 4.0
	return p
}

func dilute(natoms int, seed int64) (dynamo.Params, *dynamo.Particles) {
	params := dynamo.Params{
		NumAtoms: natoms, Mass: 39.948, Epsilon: 0.2379, Sigma: 3.405,
		Rcut: 12.0, Box: 40.0, Dt: 2.0, NSteps: 1000, NPrint: 50,
	}
	p := physics.Lattice(natoms, params.Box)
	physics.Thermalize(p, 50.0, params.Mass, rand.New(rand.NewSource(seed)))
	return params, p
}

func openDevice(items int) compute.Backend {
	dev, err := compute.Open(compute.CPU, items)
	Expect(err).NotTo(HaveOccurred())
	return dev
}

func newSimulator(dev compute.Backend, p dynamo.Params, init *dynamo.Particles, opts ...sim.Option) *sim.Simulator {
	s := sim.New(dev, p, opts...)
	Expect(s.Setup(init)).To(Succeed())
	DeferCleanup(s.Close)
	return s
}

func run(p dynamo.Params, init *dynamo.Particles, items int) (*recorder, *sim.Result) {
	rec := &recorder{}
	s := newSimulator(openDevice(items), p, init.Clone())
	s.AddObserver(rec)
	res, err := s.Run(context.Background())
	Expect(err).NotTo(HaveOccurred())
	return rec, res
}

var _ = Describe("Simulator", func() {
	Describe("a Lennard-Jones dimer", func() {
		var (
			params dynamo.Params
			rec    *recorder
			s      *sim.Simulator
			res    *sim.Result
		)

		BeforeEach(func() {
			params = dimerParams()
			rec = &recorder{}
			s = newSimulator(openDevice(16), params, dimer())
			s.AddObserver(rec)

			var err error
			res, err = s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("reports the initial and the final frame", func() {
			Expect(rec.steps()).To(Equal([]int{0, 1}))
			Expect(res.StepsTaken).To(Equal(1))
			Expect(res.Final.Step).To(Equal(1))
			Expect(s.Phase()).To(Equal(sim.Terminal))
		})

		It("starts at rest with the closed-form pair energy", func() {
			sr6 := math.Pow(params.Sigma/4.0, 6)
			want := 4 * params.Epsilon * (sr6*sr6 - sr6)

			first := rec.frames[0]
			Expect(first.Ekin).To(BeZero())
			Expect(first.Temp).To(BeZero())
			Expect(first.Epot).To(BeNumerically("~", want, 1e-12))
			Expect(first.Epot).To(BeNumerically("<", 0))
			Expect(first.Rx).To(Equal([]float64{0, 4}))
		})

		It("pulls the particles together with equal and opposite forces", func() {
			fx, fy, fz, err := s.Forces()
			Expect(err).NotTo(HaveOccurred())
			Expect(fx[0]).To(BeNumerically(">", 0))
			Expect(fx[1]).To(BeNumerically("~", -fx[0], 1e-15))
			Expect(fy).To(Equal([]float64{0, 0}))
			Expect(fz).To(Equal([]float64{0, 0}))

			final, err := s.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			Expect(final.Rx[0]).To(BeNumerically(">", 0))
			Expect(final.Rx[1]).To(BeNumerically("<", 4))
			Expect(final.Vx[0] + final.Vx[1]).To(BeNumerically("~", 0, 1e-18))
		})

		It("gains the kinetic energy of two half kicks", func() {
			d := params.Derive()
			lj := physics.NewLennardJones(d)

			ffac, _, _ := lj.Pair(16.0)
			v := d.Dtmf * -4.0 * ffac
			x0, x1 := params.Dt*v, 4.0-params.Dt*v
			r := x1 - x0
			ffac, _, _ = lj.Pair(r * r)
			v += d.Dtmf * -r * ffac

			ekin := 0.5 * dynamo.MvSq2E * params.Mass * 2 * v * v
			last := rec.frames[1]
			Expect(last.Ekin).To(BeNumerically(">", 0))
			Expect(last.Ekin).To(BeNumerically("~", ekin, 1e-9*ekin))
			Expect(last.Temp).To(BeNumerically("~", 2*ekin/3/dynamo.KBoltz, 1e-9))
			Expect(last.Rx[0]).To(BeNumerically("~", x0, 1e-15))
		})
	})

	Describe("output cadence", func() {
		var (
			params dynamo.Params
			init   *dynamo.Particles
		)

		BeforeEach(func() {
			params = dynamo.Params{
				NumAtoms: 27, Mass: 39.948, Epsilon: 0.2379, Sigma: 3.405,
				Rcut: 7.0, Box: 15.0, Dt: 5.0,
			}
			init = physics.Lattice(27, params.Box)
			physics.Thermalize(init, 90, params.Mass, rand.New(rand.NewSource(3)))
		})

		It("emits step zero and every multiple of nprint", func() {
			params.NSteps, params.NPrint = 10, 3
			rec, res := run(params, init, 8)
			Expect(rec.steps()).To(Equal([]int{0, 3, 6, 9}))
			Expect(res.Frames).To(HaveLen(4))
			Expect(res.Final.Step).To(Equal(10))
		})

		It("reports values captured one step before each boundary", func() {
			params.NSteps, params.NPrint = 6, 1
			every, _ := run(params, init, 8)

			params.NPrint = 3
			sparse, _ := run(params, init, 8)
			Expect(sparse.steps()).To(Equal([]int{0, 3, 6}))

			for _, pair := range [][2]int{{1, 2}, {2, 5}} {
				got, want := sparse.frames[pair[0]], every.frames[pair[1]]
				Expect(got.Epot).To(Equal(want.Epot))
				Expect(got.Ekin).To(Equal(want.Ekin))
				Expect(got.Rx).To(Equal(want.Rx))
				Expect(got.Rz).To(Equal(want.Rz))
			}
		})

		It("reports only the initial frame when no boundary is reached", func() {
			params.NSteps, params.NPrint = 4, 10
			rec, res := run(params, init, 8)
			Expect(rec.steps()).To(Equal([]int{0}))
			Expect(res.StepsTaken).To(Equal(4))

			params.NSteps = 0
			rec, res = run(params, init, 8)
			Expect(rec.steps()).To(Equal([]int{0}))
			Expect(res.StepsTaken).To(BeZero())
		})

		It("does not depend on the number of work items", func() {
			params.NSteps, params.NPrint = 20, 5
			a, _ := run(params, init, 1)
			b, _ := run(params, init, 64)

			Expect(b.frames).To(HaveLen(len(a.frames)))
			for i := range a.frames {
				Expect(b.frames[i].Rx).To(Equal(a.frames[i].Rx))
				Expect(b.frames[i].Ekin).To(BeNumerically("~", a.frames[i].Ekin, 1e-10*math.Abs(a.frames[i].Ekin)))
				Expect(b.frames[i].Epot).To(BeNumerically("~", a.frames[i].Epot, 1e-10*math.Abs(a.frames[i].Epot)))
			}
		})
	})

	Describe("energy conservation", func() {
		It("keeps the total energy of a dilute gas within one percent", func() {
			params, init := dilute(64, 7)
			rec, _ := run(params, init, 16)
			Expect(rec.frames).To(HaveLen(params.NSteps/params.NPrint + 1))

			e0 := rec.frames[0].Etot()
			Expect(e0).NotTo(BeZero())
			for _, f := range rec.frames {
				Expect(math.Abs(f.Etot()-e0) / math.Abs(e0)).To(BeNumerically("<", 0.01), "step %d", f.Step)
			}
		})

		It("keeps the net momentum at zero", func() {
			params, init := dilute(64, 11)
			params.NSteps = 200
			s := newSimulator(openDevice(16), params, init)
			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			p, err := s.Snapshot()
			Expect(err).NotTo(HaveOccurred())
			var px, py, pz float64
			for i := 0; i < p.Len(); i++ {
				px += p.Vx[i]
				py += p.Vy[i]
				pz += p.Vz[i]
			}
			Expect(px).To(BeNumerically("~", 0, 1e-12))
			Expect(py).To(BeNumerically("~", 0, 1e-12))
			Expect(pz).To(BeNumerically("~", 0, 1e-12))
		})
	})

	Describe("failures", func() {
		It("stops at the first failed dispatch and names the step", func() {
			p := dimerParams()
			p.NSteps = 5
			s := newSimulator(&flakyDevice{Backend: openDevice(4), kernel: "force", failOn: 3}, p, dimer())
			Expect(s.Params().NSteps).To(Equal(5))
			res, err := s.Run(context.Background())

			var se *dynamo.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Step).To(Equal(2))
			Expect(se.Op).To(Equal("force"))
			Expect(errors.Is(err, compute.ErrDispatch)).To(BeTrue())
			Expect(res.StepsTaken).To(Equal(1))
		})

		It("propagates observer errors", func() {
			s := newSimulator(openDevice(4), dimerParams(), dimer())
			s.AddObserver(failingObserver{err: errors.New("disk full")})
			_, err := s.Run(context.Background())

			var se *dynamo.StepError
			Expect(errors.As(err, &se)).To(BeTrue())
			Expect(se.Op).To(Equal("observer"))
			Expect(se.Step).To(BeZero())
			Expect(err).To(MatchError(ContainSubstring("disk full")))
		})

		It("stops between steps when the context is canceled", func() {
			p := dimerParams()
			p.NSteps = 100
			s := newSimulator(openDevice(4), p, dimer())
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			res, err := s.Run(ctx)
			Expect(errors.Is(err, dynamo.ErrContextCanceled)).To(BeTrue())
			Expect(res.StepsTaken).To(BeZero())
			Expect(res.Frames).To(HaveLen(1))
		})

		It("rejects non-finite positions at output", func() {
			init := dimer()
			init.Ry[1] = math.NaN()
			s := newSimulator(openDevice(4), dimerParams(), init)
			_, err := s.Run(context.Background())
			Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
		})

		It("lets non-finite positions through with validation off", func() {
			init := dimer()
			init.Ry[1] = math.Inf(1)
			s := newSimulator(openDevice(4), dimerParams(), init, sim.WithValidation(false))
			_, err := s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
		})

		It("rejects a configuration of the wrong size", func() {
			s := sim.New(openDevice(4), dimerParams())
			DeferCleanup(s.Close)
			Expect(errors.Is(s.Setup(dynamo.NewParticles(3)), dynamo.ErrInvalidInput)).To(BeTrue())
			Expect(s.Phase()).To(Equal(sim.Created))
		})

		It("enforces the lifecycle", func() {
			s := sim.New(openDevice(4), dimerParams())
			DeferCleanup(s.Close)
			_, err := s.Run(context.Background())
			Expect(err).To(HaveOccurred())
			_, err = s.Snapshot()
			Expect(err).To(HaveOccurred())

			Expect(s.Setup(dimer())).To(Succeed())
			Expect(s.Setup(dimer())).NotTo(Succeed())
			_, err = s.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Run(context.Background())
			Expect(err).To(HaveOccurred())
		})

		It("fails on a released device", func() {
			dev := openDevice(4)
			s := newSimulator(dev, dimerParams(), dimer())
			dev.Release()
			_, err := s.Run(context.Background())
			Expect(errors.Is(err, compute.ErrDevice)).To(BeTrue())
		})
	})

	It("builds one program holding every kernel", func() {
		s := newSimulator(openDevice(4), dimerParams(), dimer())
		names := []string{}
		for _, k := range s.Program().Kernels() {
			names = append(names, k.Name())
		}
		Expect(names).To(ConsistOf("azzero", "force", "verlet_first", "verlet_second", "ekin"))
		Expect(s.Program().Built()).To(BeTrue())
		Expect(s.Derived().Rcsq).To(Equal(64.0))
	})
})
