package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/config"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/experiment"
	"github.com/san-kum/ljmd/internal/storage"
)

const (
	exitFailure = 1
	exitRestart = 3
	exitDevice  = 4
)

var (
	dataDir    string
	debug      bool
	configFile string
	preset     string
	seed       int64
	save       bool
	runName    string
	finalPath  string
)

// usageError marks command-line mistakes that should print usage.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	rootCmd := newRootCmd()
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(os.Stderr, "%s\n\n%s", err, rootCmd.UsageString())
	} else {
		newLogger().Error(err.Error())
	}
	os.Exit(exitCode(err))
}

// exitCode maps a run failure to the process status.
func exitCode(err error) int {
	var ce *compute.Error
	switch {
	case err == nil:
		return 0
	case errors.Is(err, dynamo.ErrRestart):
		return exitRestart
	case errors.As(err, &ce):
		return exitDevice
	default:
		return exitFailure
	}
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "ljmd",
		ReportTimestamp: debug,
		TimeFormat:      time.Kitchen,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ljmd <device> [thread-count]",
		Short: "lennard-jones molecular dynamics",
		Long: "Runs a Lennard-Jones molecular dynamics simulation on a cpu or gpu compute device.\n" +
			"The input script is read from stdin unless --config or --preset is given.",
		Args:          deviceArgs,
		RunE:          runSimulation,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".ljmd", "run store directory")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")

	f := rootCmd.Flags()
	f.StringVar(&configFile, "config", "", "run configuration (yaml) instead of stdin")
	f.StringVar(&preset, "preset", "", "use a preset configuration")
	f.Int64Var(&seed, "seed", 0, "velocity seed for generated configurations")
	f.BoolVar(&save, "save", false, "save the energies to the run store")
	f.StringVar(&runName, "name", "", "run name in the store")
	f.StringVar(&finalPath, "final", "", "write the final configuration as a restart file")

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{msg: err.Error()}
	})

	rootCmd.AddCommand(
		newListCmd(),
		newPlotCmd(),
		newAnalyzeCmd(),
		newExportJSONCmd(),
		newPresetsCmd(),
		newBenchCmd(),
		newLiveCmd(),
		newBatchCmd(),
		newSweepCmd(),
		newTuneCmd(),
		newExportSVGCmd(),
		newSnapshotCmd(),
	)
	return rootCmd
}

// deviceArgs accepts "<device> [thread-count]".
func deviceArgs(_ *cobra.Command, args []string) error {
	_, _, err := parseDevice(args)
	return err
}

func parseDevice(args []string) (compute.Kind, int, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", 0, usageError{msg: fmt.Sprintf("expected a device and an optional thread count, got %d arguments", len(args))}
	}
	kind, err := compute.ParseKind(args[0])
	if err != nil {
		return "", 0, usageError{msg: fmt.Sprintf("unknown device %q (want cpu or gpu)", args[0])}
	}
	items := compute.DefaultWorkItems(kind)
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "", 0, usageError{msg: fmt.Sprintf("invalid thread count %q", args[1])}
		}
		items = n
	}
	return kind, items, nil
}

// loadRunConfig picks the configuration source: preset, yaml, or the stdin
// input script.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case preset != "" && configFile != "":
		return nil, usageError{msg: "--preset and --config are mutually exclusive"}
	case preset != "":
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q (available: %v)", dynamo.ErrInvalidInput, preset, config.ListPresets())
		}
	case configFile != "":
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	default:
		if cfg, err = config.ParseInput(cmd.InOrStdin()); err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("seed") {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

func runSimulation(cmd *cobra.Command, args []string) error {
	kind, items, err := parseDevice(args)
	if err != nil {
		return err
	}
	logger := newLogger()

	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	exp := experiment.New(experiment.Config{
		Run:          cfg,
		Device:       kind,
		WorkItems:    items,
		FinalRestart: finalPath,
		Logger:       logger,
	})
	defer exp.Close()

	out := cmd.OutOrStdout()
	console := storage.NewConsoleLog(out)
	if err := exp.Setup(console); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "Starting simulation with %d atoms for %d steps.\n", cfg.NumAtoms, cfg.NSteps)
	fmt.Fprintln(out, storage.EnergyHeader)

	res, err := exp.Run(ctx)
	if err != nil {
		return err
	}
	if err := exp.Close(); err != nil {
		return err
	}
	fmt.Fprintln(out, "Simulation Done.")

	logger.Info("run complete",
		"steps", res.StepsTaken,
		"elapsed", res.Elapsed.Round(time.Millisecond),
		"energy_drift", fmt.Sprintf("%.3e", exp.EnergyDrift()))
	logDeviceStats(logger, exp.Device())

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		id, err := st.Save(exp.Metadata(runName, res), res.Frames)
		if err != nil {
			return err
		}
		logger.Info("saved run", "id", id)
	}
	return nil
}

func logDeviceStats(logger *log.Logger, dev compute.Backend) {
	if dev == nil {
		return
	}
	st := dev.Stats()
	logger.Debug("device stats",
		"device", dev.Name(),
		"dispatches", st.Dispatches,
		"bytes_read", st.BytesRead,
		"bytes_written", st.BytesWritten)
	for name, d := range st.KernelTime {
		logger.Debug("kernel time", "kernel", name, "total", d)
	}
}
