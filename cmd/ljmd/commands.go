package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/ljmd/internal/analysis"
	"github.com/san-kum/ljmd/internal/automation"
	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/config"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/experiment"
	"github.com/san-kum/ljmd/internal/storage"
	"github.com/san-kum/ljmd/internal/viz"
)

var (
	plotField  string
	benchSteps int
	livePreset string
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepN     int
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the energies of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	cmd.Flags().StringVar(&plotField, "field", "etot", "quantity to plot: temp, ekin, epot or etot")
	return cmd
}

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "energy drift and spectrum of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}
}

func newExportJSONCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "list preset configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, viz.Title.Render("presets"))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tATOMS\tBOX\tRCUT\tDT\tSTEPS\tTEMP")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%.3f\t%.2f\t%.2f\t%d\t%.1f\n",
					name, p.NumAtoms, p.Box, p.Rcut, p.Dt, p.NSteps, p.Temperature)
			}
			return w.Flush()
		},
	}
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <device>",
		Short: "measure step throughput across work-item counts",
		Args:  cobra.ExactArgs(1),
		RunE:  benchDevice,
	}
	cmd.Flags().IntVar(&benchSteps, "steps", 200, "steps per measurement")
	return cmd
}

func newLiveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live <device> [thread-count]",
		Short: "run a preset with a live dashboard",
		Args:  deviceArgs,
		RunE:  runLive,
	}
	cmd.Flags().StringVar(&livePreset, "preset", "argon_dilute", "preset to run")
	return cmd
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <scenario.yaml>",
		Short: "run a scenario of simulations",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}
	return cmd
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep <preset>",
		Short: "sweep one parameter of a preset and report energy drift",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	cmd.Flags().StringVar(&sweepParam, "param", "dt", fmt.Sprintf("parameter to vary %v", automation.SweepParams))
	cmd.Flags().Float64Var(&sweepMin, "min", 1.0, "first value")
	cmd.Flags().Float64Var(&sweepMax, "max", 10.0, "last value")
	cmd.Flags().IntVar(&sweepN, "points", 5, "number of values")
	return cmd
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tDEVICE\tATOMS\tSTEPS\tDT\tDRIFT")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s/%d\t%d\t%d\t%.2f\t%.2e\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Device, run.WorkItems,
			run.NumAtoms,
			run.NSteps,
			run.Dt,
			run.Metrics["energy_drift"],
		)
	}
	return w.Flush()
}

func pickField(name string) (func(dynamo.State) float64, error) {
	switch name {
	case "temp":
		return func(s dynamo.State) float64 { return s.Temp }, nil
	case "ekin":
		return func(s dynamo.State) float64 { return s.Ekin }, nil
	case "epot":
		return func(s dynamo.State) float64 { return s.Epot }, nil
	case "etot":
		return dynamo.State.Etot, nil
	}
	return nil, fmt.Errorf("%w: unknown field %q", dynamo.ErrInvalidInput, name)
}

func loadRun(runID string) (*storage.RunMetadata, []dynamo.State, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	frames, err := st.LoadEnergies(runID)
	if err != nil {
		return nil, nil, err
	}
	if len(frames) == 0 {
		return nil, nil, fmt.Errorf("run %s has no frames", runID)
	}
	return meta, frames, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	pick, err := pickField(plotField)
	if err != nil {
		return err
	}
	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, viz.Title.Render(meta.ID))
	fmt.Fprintln(out, viz.Subtle.Render(fmt.Sprintf("%d atoms, %d steps, dt=%.2f", meta.NumAtoms, meta.NSteps, meta.Dt)))
	fmt.Fprintln(out)

	graph := asciigraph.Plot(analysis.Series(frames, pick),
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption(plotField+" vs output frame"),
	)
	fmt.Fprintln(out, graph)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "energy analysis: %s\n\n", meta.ID)

	ds := analysis.EnergyDrift(frames)
	fmt.Fprintf(out, "initial etot: %.8f\n", ds.Initial)
	fmt.Fprintf(out, "final etot:   %.8f\n", ds.Final)
	fmt.Fprintf(out, "max drift:    %.3e\n", ds.MaxDrift)
	fmt.Fprintf(out, "std dev:      %.3e\n\n", ds.StdDev)

	data := analysis.Series(frames, func(s dynamo.State) float64 { return s.Temp })
	n := 1
	for n < len(data) {
		n *= 2
	}
	padded := make([]float64, n)
	copy(padded, data)

	ps := analysis.PowerSpectrum(padded)
	if len(ps) < 2 {
		fmt.Fprintln(out, "too few frames for a spectrum")
		return nil
	}
	fmt.Fprintln(out, asciigraph.Plot(ps,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption("temperature power spectrum"),
	))
	fmt.Fprintln(out)

	// Frames are nprint steps of dt femtoseconds apart.
	interval := float64(meta.NPrint) * meta.Dt
	if idx, freq := analysis.DominantFrequency(ps, len(padded), interval); idx > 0 {
		fmt.Fprintf(out, "dominant frequency: %.4e 1/fs\n", freq)
		fmt.Fprintf(out, "period: %.1f fs\n", 1.0/freq)
	}
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(cmd.OutOrStdout(), *meta, frames)
}

func benchDevice(cmd *cobra.Command, args []string) error {
	kind, err := compute.ParseKind(args[0])
	if err != nil {
		return err
	}
	base := config.GetPreset("argon108")
	base.NSteps = benchSteps
	base.NPrint = benchSteps
	base.Energy, base.Trajectory = "", ""

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking %s on %d atoms\n\n", kind, base.NumAtoms)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEMS\tSTEPS\tTIME\tSTEPS/SEC\tDISPATCHES")

	for _, items := range []int{1, 16, 108, 1024} {
		cfg := *base
		exp := experiment.New(experiment.Config{Run: &cfg, Device: kind, WorkItems: items})
		if err := exp.Setup(); err != nil {
			exp.Close()
			return err
		}

		start := time.Now()
		res, err := exp.Run(context.Background())
		elapsed := time.Since(start)
		stats := exp.Device().Stats()
		exp.Close()
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\t%d\n",
			items, res.StepsTaken, elapsed.Round(time.Microsecond),
			float64(res.StepsTaken)/elapsed.Seconds(), stats.Dispatches)
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	kind, items, err := parseDevice(args)
	if err != nil {
		return err
	}
	cfg := config.GetPreset(livePreset)
	if cfg == nil {
		return fmt.Errorf("%w: unknown preset %q (available: %v)", dynamo.ErrInvalidInput, livePreset, config.ListPresets())
	}
	cfg.Energy, cfg.Trajectory = "", ""

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	exp := experiment.New(experiment.Config{Run: cfg, Device: kind, WorkItems: items})
	defer exp.Close()

	feed := viz.NewFeed(ctx, 16)
	if err := exp.Setup(feed); err != nil {
		return err
	}

	var runErr error
	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_, runErr = exp.Run(ctx)
		feed.Close()
		done <- runErr
	}()

	m := viz.NewModel(livePreset, cfg.Params(), feed, done, cancel)
	_, uiErr := tea.NewProgram(m, tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout())).Run()
	cancel()
	<-finished
	return liveResult(uiErr, runErr)
}

// liveResult picks the error a live session exits with. Stopping the run
// from the dashboard is not a failure.
func liveResult(uiErr, runErr error) error {
	if uiErr != nil {
		return uiErr
	}
	if errors.Is(runErr, dynamo.ErrContextCanceled) || errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runner := &automation.Runner{Store: st, Logger: newLogger()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := runner.RunScenario(ctx, scenario)

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tFRAMES\tFINAL ETOT\tDRIFT\tSTORED AS")
	for _, r := range results {
		final := 0.0
		if n := len(r.Frames); n > 0 {
			final = r.Frames[n-1].Etot()
		}
		fmt.Fprintf(w, "%s\t%d\t%.8f\t%.2e\t%s\n", r.Label, len(r.Frames), final, r.Drift, r.RunID)
	}
	if ferr := w.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}

func runSweep(cmd *cobra.Command, args []string) error {
	base := config.GetPreset(args[0])
	if base == nil {
		return fmt.Errorf("%w: unknown preset %q (available: %v)", dynamo.ErrInvalidInput, args[0], config.ListPresets())
	}

	runner := &automation.Runner{Logger: newLogger()}
	results, err := runner.RunSweep(cmd.Context(), &automation.Sweep{
		Base:   base,
		Device: compute.CPU,
		Param:  sweepParam,
		Min:    sweepMin,
		Max:    sweepMax,
		Points: sweepN,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\tFINAL TEMP\tMIN ETOT\tMAX ETOT\tDRIFT\n", sweepParam)
	for _, r := range results {
		fmt.Fprintf(w, "%.4f\t%.4f\t%.8f\t%.8f\t%.2e\n", r.Value, r.Final.Temp, r.MinEnergy, r.MaxEnergy, r.Drift)
	}
	return w.Flush()
}
