package experiment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"

	"github.com/charmbracelet/log"

	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/config"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/metrics"
	"github.com/san-kum/ljmd/internal/physics"
	"github.com/san-kum/ljmd/internal/sim"
	"github.com/san-kum/ljmd/internal/storage"
)

// Config describes one run: the physical setup plus where it executes.
type Config struct {
	Run       *config.Config
	Device    compute.Kind
	WorkItems int
	// FinalRestart, when set, receives the final positions and velocities.
	FinalRestart string
	Logger       *log.Logger
}

// Experiment wires a device, a Simulator and the output writers for a run.
type Experiment struct {
	cfg       Config
	logger    *log.Logger
	dev       compute.Backend
	simulator *sim.Simulator
	drift     *metrics.EnergyDrift
	closers   []io.Closer
}

func New(cfg Config) *Experiment {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if cfg.WorkItems <= 0 {
		cfg.WorkItems = compute.DefaultWorkItems(cfg.Device)
	}
	return &Experiment{cfg: cfg, logger: logger, drift: metrics.NewEnergyDrift()}
}

// Setup opens the device, loads the initial configuration and prepares the
// output files. Extra observers receive every frame after the files do.
func (e *Experiment) Setup(observers ...dynamo.Observer) error {
	rc := e.cfg.Run
	if rc == nil {
		return fmt.Errorf("%w: no run configuration", dynamo.ErrInvalidInput)
	}
	if err := rc.Validate(); err != nil {
		return err
	}

	dev, err := compute.Open(e.cfg.Device, e.cfg.WorkItems, compute.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.dev = dev

	particles, err := InitialParticles(rc)
	if err != nil {
		return err
	}

	e.simulator = sim.New(dev, rc.Params(), sim.WithLogger(e.logger))
	if err := e.simulator.Setup(particles); err != nil {
		return err
	}

	if rc.Energy != "" {
		erg, err := storage.CreateEnergyLog(rc.Energy)
		if err != nil {
			return fmt.Errorf("open energy log: %w", err)
		}
		e.closers = append(e.closers, erg)
		e.simulator.AddObserver(erg)
	}
	if rc.Trajectory != "" {
		traj, err := storage.CreateTrajectory(rc.Trajectory)
		if err != nil {
			return fmt.Errorf("open trajectory: %w", err)
		}
		e.closers = append(e.closers, traj)
		e.simulator.AddObserver(traj)
	}
	e.simulator.AddObserver(e.drift)
	for _, o := range observers {
		e.simulator.AddObserver(o)
	}

	e.logger.Debug("experiment ready", "device", dev.Name(), "natoms", rc.NumAtoms, "nsteps", rc.NSteps, "nprint", rc.NPrint)
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	res, err := e.simulator.Run(ctx)
	if err != nil {
		return res, err
	}

	if e.cfg.FinalRestart != "" {
		p, err := e.simulator.Snapshot()
		if err != nil {
			return res, err
		}
		if err := storage.WriteRestart(e.cfg.FinalRestart, p); err != nil {
			return res, fmt.Errorf("write final restart: %w", err)
		}
		e.logger.Info("final configuration written", "path", e.cfg.FinalRestart)
	}
	return res, nil
}

// Close flushes the output files and releases the device.
func (e *Experiment) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.closers = nil
	if e.simulator != nil {
		e.simulator.Close()
	} else if e.dev != nil {
		e.dev.Release()
	}
	return errors.Join(errs...)
}

func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
func (e *Experiment) Device() compute.Backend    { return e.dev }
func (e *Experiment) EnergyDrift() float64       { return e.drift.Value() }

// Metadata describes the run for the run store.
func (e *Experiment) Metadata(name string, res *sim.Result) storage.RunMetadata {
	rc := e.cfg.Run
	meta := storage.RunMetadata{
		Name:      name,
		Device:    string(e.cfg.Device),
		WorkItems: e.cfg.WorkItems,
		NumAtoms:  rc.NumAtoms,
		NSteps:    rc.NSteps,
		NPrint:    rc.NPrint,
		Dt:        rc.Dt,
		Box:       rc.Box,
		Rcut:      rc.Rcut,
		Metrics: map[string]float64{
			"energy_drift": e.drift.Value(),
		},
	}
	if res != nil {
		meta.Metrics["final_etot"] = res.Final.Etot()
		meta.Metrics["final_temp"] = res.Final.Temp
		if secs := res.Elapsed.Seconds(); secs > 0 {
			meta.Metrics["steps_per_sec"] = float64(res.StepsTaken) / secs
		}
	}
	return meta
}

// InitialParticles loads the restart file named by c, or builds a
// configuration from inline positions or a lattice when there is none.
func InitialParticles(c *config.Config) (*dynamo.Particles, error) {
	if c.Restart != "" {
		return storage.ReadRestart(c.Restart, c.NumAtoms)
	}

	var p *dynamo.Particles
	if len(c.Positions) > 0 {
		if len(c.Positions) != c.NumAtoms {
			return nil, fmt.Errorf("%w: %d inline positions for %d atoms", dynamo.ErrInvalidInput, len(c.Positions), c.NumAtoms)
		}
		p = dynamo.NewParticles(c.NumAtoms)
		for i, r := range c.Positions {
			p.Rx[i], p.Ry[i], p.Rz[i] = r[0], r[1], r[2]
		}
	} else {
		p = physics.Lattice(c.NumAtoms, c.Box)
	}

	if c.Temperature > 0 {
		physics.Thermalize(p, c.Temperature, c.Mass, rand.New(rand.NewSource(c.Seed)))
	}
	return p, nil
}
