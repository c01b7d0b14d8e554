package experiment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/config"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/storage"
)

func dimerIn(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.GetPreset("dimer")
	cfg.Energy = filepath.Join(dir, "dimer.dat")
	cfg.Trajectory = filepath.Join(dir, "dimer.xyz")
	return cfg
}

type counter struct{ n int }

func (c *counter) OnFrame(dynamo.Frame) error { c.n++; return nil }

func TestExperimentRun(t *testing.T) {
	cfg := dimerIn(t)
	final := filepath.Join(t.TempDir(), "final.rest")

	exp := New(Config{Run: cfg, Device: compute.CPU, FinalRestart: final})
	extra := &counter{}
	if err := exp.Setup(extra); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	res, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if len(res.Frames) != 2 || extra.n != 2 {
		t.Errorf("expected 2 frames, got %d (observer saw %d)", len(res.Frames), extra.n)
	}
	if exp.Device().WorkItems() != compute.DefaultWorkItems(compute.CPU) {
		t.Errorf("expected default work items, got %d", exp.Device().WorkItems())
	}

	energies, err := os.ReadFile(cfg.Energy)
	if err != nil {
		t.Fatalf("read energies: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(energies)), "\n")
	if len(lines) != 2 || strings.TrimSpace(lines[0])[0] != '0' {
		t.Errorf("unexpected energy log:\n%s", energies)
	}

	traj, err := os.ReadFile(cfg.Trajectory)
	if err != nil {
		t.Fatalf("read trajectory: %v", err)
	}
	if n := strings.Count(string(traj), "Ar  "); n != 4 {
		t.Errorf("expected 4 particle lines, got %d", n)
	}

	p, err := storage.ReadRestart(final, 2)
	if err != nil {
		t.Fatalf("final restart unreadable: %v", err)
	}
	if p.Rx[0] <= 0 || p.Vx[0] <= 0 {
		t.Errorf("final configuration should have moved toward the partner: %+v", p)
	}

	meta := exp.Metadata("dimer", res)
	if meta.NumAtoms != 2 || meta.Device != "cpu" || meta.Metrics["final_etot"] != res.Final.Etot() {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if exp.EnergyDrift() < 0 {
		t.Errorf("drift should not be negative")
	}
}

func TestExperimentDeviceFailure(t *testing.T) {
	exp := New(Config{Run: dimerIn(t), Device: compute.Kind("tpu")})
	defer exp.Close()

	err := exp.Setup()
	var ce *compute.Error
	if !errors.As(err, &ce) || !errors.Is(err, compute.ErrDevice) {
		t.Errorf("expected a device error, got %v", err)
	}
}

func TestExperimentMissingRestart(t *testing.T) {
	cfg := dimerIn(t)
	cfg.Restart = filepath.Join(t.TempDir(), "missing.rest")
	exp := New(Config{Run: cfg, Device: compute.CPU})
	defer exp.Close()

	if err := exp.Setup(); !errors.Is(err, dynamo.ErrRestart) {
		t.Errorf("expected ErrRestart, got %v", err)
	}
}

func TestExperimentInvalidConfig(t *testing.T) {
	cfg := dimerIn(t)
	cfg.NPrint = 0
	exp := New(Config{Run: cfg, Device: compute.CPU})
	defer exp.Close()

	if err := exp.Setup(); !errors.Is(err, dynamo.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := exp.Run(context.Background()); err == nil {
		t.Error("run without setup should fail")
	}
}

func TestInitialParticles(t *testing.T) {
	t.Run("restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "in.rest")
		want := dynamo.NewParticles(2)
		want.Rx[1], want.Vy[0] = 3.5, 0.01
		if err := storage.WriteRestart(path, want); err != nil {
			t.Fatal(err)
		}
		cfg := config.GetPreset("dimer")
		cfg.Restart = path
		got, err := InitialParticles(cfg)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if got.Rx[1] != 3.5 || got.Vy[0] != 0.01 {
			t.Errorf("unexpected particles: %+v", got)
		}
	})

	t.Run("inline positions", func(t *testing.T) {
		got, err := InitialParticles(config.GetPreset("dimer"))
		if err != nil {
			t.Fatal(err)
		}
		if got.Rx[1] != 4 || got.Vx[0] != 0 {
			t.Errorf("unexpected particles: %+v", got)
		}
	})

	t.Run("thermalized lattice", func(t *testing.T) {
		cfg := config.GetPreset("argon108")
		a, err := InitialParticles(cfg)
		if err != nil {
			t.Fatal(err)
		}
		b, _ := InitialParticles(cfg)
		if a.Len() != 108 || a.Vx[0] == 0 {
			t.Errorf("expected thermalized lattice")
		}
		if a.Vx[5] != b.Vx[5] {
			t.Error("same seed should give the same velocities")
		}
	})
}
