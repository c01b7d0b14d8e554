package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/san-kum/ljmd/internal/analysis"
	"github.com/san-kum/ljmd/internal/automation"
	"github.com/san-kum/ljmd/internal/compute"
	"github.com/san-kum/ljmd/internal/config"
	"github.com/san-kum/ljmd/internal/dynamo"
	"github.com/san-kum/ljmd/internal/experiment"
	"github.com/san-kum/ljmd/internal/export"
)

var (
	tuneDt    []float64
	tuneRcut  []float64
	tuneTemp  []float64
	svgOut    string
	svgWidth  int
	svgHeight int
	svgSize   int
)

func newTuneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tune <preset>",
		Short: "grid search dt, rcut and temperature for the smallest energy drift",
		Args:  cobra.ExactArgs(1),
		RunE:  runTune,
	}
	cmd.Flags().Float64SliceVar(&tuneDt, "dt", nil, "timesteps to try")
	cmd.Flags().Float64SliceVar(&tuneRcut, "rcut", nil, "cutoffs to try")
	cmd.Flags().Float64SliceVar(&tuneTemp, "temperature", nil, "initial temperatures to try")
	return cmd
}

func newExportSVGCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render the energies of a stored run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	cmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&plotField, "field", "etot", "quantity to plot: temp, ekin, epot or etot")
	cmd.Flags().IntVar(&svgWidth, "width", 800, "image width")
	cmd.Flags().IntVar(&svgHeight, "height", 300, "image height")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot <preset|config.yaml>",
		Short: "render the initial configuration of a run as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  snapshot,
	}
	cmd.Flags().StringVarP(&svgOut, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&svgSize, "size", 600, "image size")
	return cmd
}

func runTune(cmd *cobra.Command, args []string) error {
	base := config.GetPreset(args[0])
	if base == nil {
		return fmt.Errorf("%w: unknown preset %q (available: %v)", dynamo.ErrInvalidInput, args[0], config.ListPresets())
	}

	grid := map[string][]float64{}
	if len(tuneDt) > 0 {
		grid["dt"] = tuneDt
	}
	if len(tuneRcut) > 0 {
		grid["rcut"] = tuneRcut
	}
	if len(tuneTemp) > 0 {
		grid["temperature"] = tuneTemp
	}
	if len(grid) == 0 {
		return usageError{msg: "tune needs at least one of --dt, --rcut, --temperature"}
	}

	runner := &automation.Runner{Logger: newLogger()}
	best, drift, err := runner.Tune(cmd.Context(), base, compute.CPU, grid)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(best))
	for name := range best {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "best setting for %s (energy drift %.3e):\n", args[0], drift)
	for _, name := range names {
		fmt.Fprintf(out, "  %s = %g\n", name, best[name])
	}
	return nil
}

func writeOutput(cmd *cobra.Command, svg string) error {
	if svgOut == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), svg)
		return err
	}
	return os.WriteFile(svgOut, []byte(svg), 0644)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	pick, err := pickField(plotField)
	if err != nil {
		return err
	}
	_, frames, err := loadRun(args[0])
	if err != nil {
		return err
	}
	svg := export.SeriesSVG(analysis.Series(frames, pick), svgWidth, svgHeight, "#00ff88")
	if svg == "" {
		return fmt.Errorf("run %s needs at least two frames", args[0])
	}
	return writeOutput(cmd, svg)
}

func snapshot(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		var err error
		if cfg, err = config.Load(args[0]); err != nil {
			return fmt.Errorf("%q is neither a preset nor a readable config: %w", args[0], err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	p, err := experiment.InitialParticles(cfg)
	if err != nil {
		return err
	}
	return writeOutput(cmd, export.ParticlesSVG(p, cfg.Box, svgSize))
}
