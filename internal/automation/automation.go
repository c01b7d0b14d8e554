package automation

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/config"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/experiment"
	"github.com/san-kum/ljmd/internal/optim"
	"github.com/san-kum/ljmd/internal/storage"
)

// Scenario is a scripted sequence of runs loaded from YAML.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep describes one run. Exactly one of Preset and Config names
// the base configuration; the remaining fields override it when set.
type ScenarioStep struct {
	Preset    string `yaml:"preset"`
	Config    string `yaml:"config"`
	Device    string `yaml:"device"`
	WorkItems int    `yaml:"work_items"`

	NSteps      int     `yaml:"nsteps"`
	NPrint      int     `yaml:"nprint"`
	Dt          float64 `yaml:"dt"`
	Temperature float64 `yaml:"temperature"`
	Seed        int64   `yaml:"seed"`

	// Output files are written only when named here.
	Energy     string `yaml:"energy"`
	Trajectory string `yaml:"trajectory"`

	SaveAs string `yaml:"save_as"`
}

// StepResult is the outcome of one scenario step.
type StepResult struct {
	Label  string
	RunID  string
	Frames []dynamo.State
	Drift  float64
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrInvalidInput, path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("%w: scenario %q has no steps", dynamo.ErrInvalidInput, scenario.Name)
	}
	return &scenario, nil
}

// Resolve builds the run configuration for the step.
func (s ScenarioStep) Resolve() (*config.Config, string, error) {
	var (
		cfg   *config.Config
		label string
	)
	switch {
	case s.Preset != "" && s.Config != "":
		return nil, "", fmt.Errorf("%w: preset and config are mutually exclusive", dynamo.ErrInvalidInput)
	case s.Preset != "":
		cfg = config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, "", fmt.Errorf("%w: unknown preset %q", dynamo.ErrInvalidInput, s.Preset)
		}
		label = s.Preset
	case s.Config != "":
		var err error
		if cfg, err = config.Load(s.Config); err != nil {
			return nil, "", err
		}
		label = s.Config
	default:
		return nil, "", fmt.Errorf("%w: step needs a preset or a config", dynamo.ErrInvalidInput)
	}

	if s.NSteps > 0 {
		cfg.NSteps = s.NSteps
	}
	if s.NPrint > 0 {
		cfg.NPrint = s.NPrint
	}
	if s.Dt > 0 {
		cfg.Dt = s.Dt
	}
	if s.Temperature > 0 {
		cfg.Temperature = s.Temperature
	}
	if s.Seed != 0 {
		cfg.Seed = s.Seed
	}
	cfg.Energy = s.Energy
	cfg.Trajectory = s.Trajectory
	if s.SaveAs != "" {
		label = s.SaveAs
	}
	return cfg, label, nil
}

// Runner executes scenarios and sweeps. Results are saved to Store when
// it is non-nil and the step asks for it.
type Runner struct {
	Store  *storage.Store
	Logger *log.Logger
}

func (r *Runner) logger() *log.Logger {
	if r.Logger == nil {
		return log.New(io.Discard)
	}
	return r.Logger
}

// RunScenario executes the steps in order and stops at the first failure,
// returning the results gathered so far.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, label, err := step.Resolve()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		r.logger().Info("running step", "n", i+1, "of", len(scenario.Steps), "run", label)

		res, err := r.run(ctx, cfg, step.Device, step.WorkItems, label, step.SaveAs != "")
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) run(ctx context.Context, cfg *config.Config, device string, items int, label string, save bool) (StepResult, error) {
	kind := compute.CPU
	if device != "" {
		var err error
		if kind, err = compute.ParseKind(device); err != nil {
			return StepResult{}, err
		}
	}

	exp := experiment.New(experiment.Config{
		Run:       cfg,
		Device:    kind,
		WorkItems: items,
		Logger:    r.Logger,
	})
	defer exp.Close()

	if err := exp.Setup(); err != nil {
		return StepResult{}, fmt.Errorf("setup: %w", err)
	}
	res, err := exp.Run(ctx)
	if err != nil {
		return StepResult{}, fmt.Errorf("run: %w", err)
	}

	out := StepResult{Label: label, Frames: res.Frames, Drift: exp.EnergyDrift()}
	if save && r.Store != nil {
		id, err := r.Store.Save(exp.Metadata(label, res), res.Frames)
		if err != nil {
			return out, fmt.Errorf("save: %w", err)
		}
		out.RunID = id
		r.logger().Info("saved run", "id", id)
	}
	return out, nil
}

// Sweep varies one parameter of a base configuration over a range.
type Sweep struct {
	Base      *config.Config
	Device    compute.Kind
	WorkItems int
	Param     string
	Min, Max  float64
	Points    int
}

// SweepResult summarises one sweep point.
type SweepResult struct {
	Value     float64
	Final     dynamo.State
	Drift     float64
	MinEnergy float64
	MaxEnergy float64
}

// SweepParams lists the parameters a Sweep can vary.
var SweepParams = []string{"dt", "temperature", "rcut", "box"}

func setParam(c *config.Config, name string, v float64) error {
	switch name {
	case "dt":
		c.Dt = v
	case "temperature":
		c.Temperature = v
	case "rcut":
		c.Rcut = v
	case "box":
		c.Box = v
	default:
		return fmt.Errorf("%w: cannot sweep %q", dynamo.ErrInvalidInput, name)
	}
	return nil
}

func (r *Runner) RunSweep(ctx context.Context, sw *Sweep) ([]SweepResult, error) {
	if sw.Base == nil {
		return nil, fmt.Errorf("%w: sweep has no base configuration", dynamo.ErrInvalidInput)
	}
	if sw.Points < 1 {
		return nil, fmt.Errorf("%w: sweep needs at least one point", dynamo.ErrInvalidInput)
	}

	step := 0.0
	if sw.Points > 1 {
		step = (sw.Max - sw.Min) / float64(sw.Points-1)
	}
	results := make([]SweepResult, 0, sw.Points)

	for i := 0; i < sw.Points; i++ {
		v := sw.Min + float64(i)*step
		cfg := *sw.Base
		cfg.Energy, cfg.Trajectory = "", ""
		if err := setParam(&cfg, sw.Param, v); err != nil {
			return results, err
		}

		res, err := r.run(ctx, &cfg, string(sw.Device), sw.WorkItems, "", false)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sw.Param, v, err)
		}

		sr := SweepResult{Value: v, Drift: res.Drift}
		if n := len(res.Frames); n > 0 {
			sr.Final = res.Frames[n-1]
			sr.MinEnergy, sr.MaxEnergy = res.Frames[0].Etot(), res.Frames[0].Etot()
			for _, f := range res.Frames {
				sr.MinEnergy = min(sr.MinEnergy, f.Etot())
				sr.MaxEnergy = max(sr.MaxEnergy, f.Etot())
			}
		}
		results = append(results, sr)
		r.logger().Info("sweep point done", "n", i+1, "of", sw.Points, sw.Param, v)
	}
	return results, nil
}

// Tune searches a grid of parameter values for the setting with the
// smallest energy drift.
func (r *Runner) Tune(ctx context.Context, base *config.Config, device compute.Kind, grid map[string][]float64) (map[string]float64, float64, error) {
	if base == nil {
		return nil, 0, fmt.Errorf("%w: tune has no base configuration", dynamo.ErrInvalidInput)
	}
	names := make([]string, 0, len(grid))
	for _, name := range SweepParams {
		if _, ok := grid[name]; ok {
			names = append(names, name)
		}
	}
	if len(names) != len(grid) {
		return nil, 0, fmt.Errorf("%w: can only tune %v", dynamo.ErrInvalidInput, SweepParams)
	}
	ranges := make([][]float64, len(names))
	for i, name := range names {
		ranges[i] = grid[name]
	}

	search := optim.NewGridSearch(names, ranges)
	r.logger().Info("tuning", "params", names, "points", search.Points())
	return search.Search(ctx, func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg := *base
		cfg.Energy, cfg.Trajectory = "", ""
		for name, v := range params {
			if err := setParam(&cfg, name, v); err != nil {
				return 0, err
			}
		}
		res, err := r.run(ctx, &cfg, string(device), 0, "", false)
		if err != nil {
			return 0, err
		}
		r.logger().Debug("tune point", "params", params, "drift", res.Drift)
		return res.Drift, nil
	})
}
