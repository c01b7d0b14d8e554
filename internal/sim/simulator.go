package sim

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/integrators"
	"github.com/san-kum/ljmd/internal/metrics"
	"github.com/san-kum/ljmd/internal/physics"
)

// Phase is the lifecycle stage of a Simulator.
type Phase int

const (
	Created Phase = iota
	Initializing
	Stepping
	Terminal
)

func (p Phase) String() string {
	switch p {
	case Created:
		return "created"
	case Initializing:
		return "initializing"
	case Stepping:
		return "stepping"
	case Terminal:
		return "terminal"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Result summarizes a completed run.
type Result struct {
	Frames     []dynamo.State
	Final      dynamo.State
	StepsTaken int
	Elapsed    time.Duration
}

type Option func(*Simulator)

func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithValidation makes every output step reject non-finite positions.
func WithValidation(on bool) Option {
	return func(s *Simulator) { s.validate = on }
}

// Simulator drives the MD pipeline on a compute device. It is the only
// writer of the device-resident particle state and is not safe for
// concurrent use.
type Simulator struct {
	dev       compute.Backend
	params    dynamo.Params
	derived   dynamo.Derived
	logger    *log.Logger
	validate  bool
	observers []dynamo.Observer

	rx, ry, rz *compute.Buffer
	vx, vy, vz *compute.Buffer
	fx, fy, fz *compute.Buffer
	epot, ekin *compute.Buffer

	zero    *physics.ZeroKernel
	force   *physics.ForceKernel
	first   *integrators.VerletFirst
	second  *integrators.VerletSecond
	kinetic *metrics.KineticKernel
	program *compute.Program

	stage *staging
	phase Phase
}

func New(dev compute.Backend, p dynamo.Params, opts ...Option) *Simulator {
	s := &Simulator{
		dev:      dev,
		params:   p,
		derived:  p.Derive(),
		logger:   log.New(io.Discard),
		validate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Phase() Phase            { return s.phase }
func (s *Simulator) Params() dynamo.Params   { return s.params }
func (s *Simulator) Derived() dynamo.Derived { return s.derived }

// Program returns the kernel program built by Setup.
func (s *Simulator) Program() *compute.Program { return s.program }

// Setup allocates the device buffers, uploads the initial configuration and
// builds the kernel program.
func (s *Simulator) Setup(init *dynamo.Particles) error {
	if s.phase != Created {
		return fmt.Errorf("sim: setup called in phase %s", s.phase)
	}
	n := s.params.NumAtoms
	if init == nil || init.Len() != n {
		got := 0
		if init != nil {
			got = init.Len()
		}
		return fmt.Errorf("%w: expected %d particles, got %d", dynamo.ErrInvalidInput, n, got)
	}
	items := s.dev.WorkItems()

	var err error
	alloc := func(name string, size int) *compute.Buffer {
		if err != nil {
			return nil
		}
		var b *compute.Buffer
		b, err = s.dev.Alloc(name, size)
		return b
	}
	s.rx, s.ry, s.rz = alloc("rx", n), alloc("ry", n), alloc("rz", n)
	s.vx, s.vy, s.vz = alloc("vx", n), alloc("vy", n), alloc("vz", n)
	s.fx, s.fy, s.fz = alloc("fx", n), alloc("fy", n), alloc("fz", n)
	s.epot, s.ekin = alloc("epot", items), alloc("ekin", items)
	if err != nil {
		return fmt.Errorf("sim: allocate device buffers: %w", err)
	}

	uploads := []struct {
		dst *compute.Buffer
		src []float64
	}{
		{s.rx, init.Rx}, {s.ry, init.Ry}, {s.rz, init.Rz},
		{s.vx, init.Vx}, {s.vy, init.Vy}, {s.vz, init.Vz},
	}
	for _, u := range uploads {
		if err := s.dev.Write(u.dst, u.src); err != nil {
			return fmt.Errorf("sim: upload initial state: %w", err)
		}
	}

	d := s.derived
	s.zero = &physics.ZeroKernel{Buffers: []*compute.Buffer{s.fx, s.fy, s.fz}, N: n}
	s.force = &physics.ForceKernel{
		Fx: s.fx, Fy: s.fy, Fz: s.fz,
		Rx: s.rx, Ry: s.ry, Rz: s.rz,
		Epot:   s.epot,
		N:      n,
		LJ:     physics.NewLennardJones(d),
		Box:    s.params.Box,
		BoxBy2: d.BoxBy2,
	}
	s.first = &integrators.VerletFirst{
		Rx: s.rx, Ry: s.ry, Rz: s.rz,
		Vx: s.vx, Vy: s.vy, Vz: s.vz,
		Fx: s.fx, Fy: s.fy, Fz: s.fz,
		N: n, Dt: s.params.Dt, Dtmf: d.Dtmf,
	}
	s.second = &integrators.VerletSecond{
		Vx: s.vx, Vy: s.vy, Vz: s.vz,
		Fx: s.fx, Fy: s.fy, Fz: s.fz,
		N: n, Dtmf: d.Dtmf,
	}
	s.kinetic = &metrics.KineticKernel{Vx: s.vx, Vy: s.vy, Vz: s.vz, Ekin: s.ekin, N: n}

	s.program = compute.NewProgram("ljmd", "", s.zero, s.force, s.first, s.second, s.kinetic)
	if err := s.dev.Build(s.program); err != nil {
		return fmt.Errorf("sim: %w", err)
	}

	s.stage = newStaging(n, items)
	s.phase = Initializing
	return nil
}

// Run executes the initial evaluation and nsteps integration steps. Output
// frames go to the observers at step 0 and at every multiple of nprint.
//
// Frames at nprint boundaries carry positions and energies captured during
// the step before the boundary (the readbacks are issued one step early).
// With nprint == 1 capture and output happen in the same step.
func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if s.phase != Initializing {
		return nil, fmt.Errorf("sim: run called in phase %s", s.phase)
	}
	if s.params.NPrint < 1 || s.params.NSteps < 0 {
		return nil, fmt.Errorf("%w: nsteps=%d nprint=%d", dynamo.ErrInvalidInput, s.params.NSteps, s.params.NPrint)
	}
	start := time.Now()
	res := &Result{Frames: make([]dynamo.State, 0, s.params.NSteps/s.params.NPrint+1)}
	state := &dynamo.State{}

	if err := s.initialize(state); err != nil {
		return res, err
	}
	if err := s.output(state, res); err != nil {
		return res, err
	}

	s.phase = Stepping
	nprint := s.params.NPrint
	for state.Step = 1; state.Step <= s.params.NSteps; state.Step++ {
		select {
		case <-ctx.Done():
			return res, &dynamo.StepError{Step: state.Step, Op: "cancel",
				Wrapped: fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, ctx.Err())}
		default:
		}

		if err := s.step(state); err != nil {
			return res, err
		}
		res.StepsTaken++

		if state.Step%nprint == 0 {
			if err := s.output(state, res); err != nil {
				return res, err
			}
		}
	}

	res.Final = *state
	res.Elapsed = time.Since(start)
	s.phase = Terminal
	s.logger.Debug("run complete", "steps", res.StepsTaken, "frames", len(res.Frames), "elapsed", res.Elapsed)
	return res, nil
}

func (s *Simulator) initialize(state *dynamo.State) error {
	state.Step = 0
	s.stage.begin(0)
	if err := s.evaluateForces(0); err != nil {
		return err
	}
	if err := s.captureEpot(0); err != nil {
		return err
	}
	if err := s.captureEkin(0); err != nil {
		return err
	}
	return s.capturePositions(0)
}

// step advances the system by one timestep, issuing the readbacks for the
// next output when the following step is an nprint boundary.
func (s *Simulator) step(state *dynamo.State) error {
	n := state.Step
	capture := n%s.params.NPrint == s.params.NPrint-1

	if err := s.launch(n, s.first); err != nil {
		return err
	}
	if capture {
		s.stage.begin(n)
		if err := s.capturePositions(n); err != nil {
			return err
		}
	}

	if err := s.evaluateForces(n); err != nil {
		return err
	}
	if capture {
		if err := s.captureEpot(n); err != nil {
			return err
		}
	}

	if err := s.launch(n, s.second); err != nil {
		return err
	}
	if capture {
		if err := s.captureEkin(n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulator) evaluateForces(step int) error {
	if err := s.launch(step, s.zero); err != nil {
		return err
	}
	return s.launch(step, s.force)
}

func (s *Simulator) capturePositions(step int) error {
	for _, r := range []struct {
		src *compute.Buffer
		dst []float64
	}{{s.rx, s.stage.rx}, {s.ry, s.stage.ry}, {s.rz, s.stage.rz}} {
		if err := s.read(step, r.src, r.dst); err != nil {
			return err
		}
	}
	s.stage.mark(havePositions)
	s.logger.Debug("readback", "step", step, "data", "positions")
	return nil
}

func (s *Simulator) captureEpot(step int) error {
	if err := s.read(step, s.epot, s.stage.epot); err != nil {
		return err
	}
	s.stage.mark(haveEpot)
	s.logger.Debug("readback", "step", step, "data", "epot")
	return nil
}

func (s *Simulator) captureEkin(step int) error {
	if err := s.launch(step, s.kinetic); err != nil {
		return err
	}
	if err := s.read(step, s.ekin, s.stage.ekin); err != nil {
		return err
	}
	s.stage.mark(haveEkin)
	s.logger.Debug("readback", "step", step, "data", "ekin")
	return nil
}

// output folds the staged partials into state and hands the frame to the
// observers.
func (s *Simulator) output(state *dynamo.State, res *Result) error {
	captured, err := s.stage.take()
	if err != nil {
		return &dynamo.StepError{Step: state.Step, Op: "output", Wrapped: err}
	}
	metrics.Finalize(state, s.params, s.stage.epot, s.stage.ekin)

	frame := dynamo.Frame{State: *state, Rx: s.stage.rx, Ry: s.stage.ry, Rz: s.stage.rz}
	if s.validate && !(&dynamo.Particles{Rx: frame.Rx, Ry: frame.Ry, Rz: frame.Rz}).IsValid() {
		return &dynamo.StepError{Step: state.Step, Op: "output", Wrapped: dynamo.ErrInvalidState}
	}
	s.logger.Debug("output", "step", state.Step, "captured_at", captured, "etot", state.Etot())

	for _, o := range s.observers {
		if err := o.OnFrame(frame); err != nil {
			return &dynamo.StepError{Step: state.Step, Op: "observer", Wrapped: err}
		}
	}
	res.Frames = append(res.Frames, *state)
	res.Final = *state
	return nil
}

func (s *Simulator) launch(step int, k compute.Kernel) error {
	if err := s.dev.Launch(k); err != nil {
		return &dynamo.StepError{Step: step, Op: k.Name(), Wrapped: err}
	}
	return nil
}

func (s *Simulator) read(step int, src *compute.Buffer, dst []float64) error {
	if err := s.dev.Read(src, dst); err != nil {
		return &dynamo.StepError{Step: step, Op: "read " + src.Name(), Wrapped: err}
	}
	return nil
}

// Snapshot downloads the current positions and velocities.
func (s *Simulator) Snapshot() (*dynamo.Particles, error) {
	if s.phase == Created {
		return nil, fmt.Errorf("sim: snapshot before setup")
	}
	p := dynamo.NewParticles(s.params.NumAtoms)
	for _, r := range []struct {
		src *compute.Buffer
		dst []float64
	}{
		{s.rx, p.Rx}, {s.ry, p.Ry}, {s.rz, p.Rz},
		{s.vx, p.Vx}, {s.vy, p.Vy}, {s.vz, p.Vz},
	} {
		if err := s.dev.Read(r.src, r.dst); err != nil {
			return nil, fmt.Errorf("sim: snapshot: %w", err)
		}
	}
	return p, nil
}

// Forces downloads the force arrays left by the last evaluation.
func (s *Simulator) Forces() (fx, fy, fz []float64, err error) {
	if s.phase == Created {
		return nil, nil, nil, fmt.Errorf("sim: forces before setup")
	}
	n := s.params.NumAtoms
	fx, fy, fz = make([]float64, n), make([]float64, n), make([]float64, n)
	for _, r := range []struct {
		src *compute.Buffer
		dst []float64
	}{{s.fx, fx}, {s.fy, fy}, {s.fz, fz}} {
		if err := s.dev.Read(r.src, r.dst); err != nil {
			return nil, nil, nil, fmt.Errorf("sim: forces: %w", err)
		}
	}
	return fx, fy, fz, nil
}

// Close releases the device and every buffer on it.
func (s *Simulator) Close() {
	s.dev.Release()
	s.phase = Terminal
}
