package config

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// inputFields lists the lines of an input script in order.
var inputFields = []string{
	"natoms", "mass", "epsilon", "sigma", "rcut", "box",
	"restart", "trajectory", "energy", "nsteps", "dt", "nprint",
}

// ParseInput reads a line-oriented input script: one value per line, text
// after '#' ignored, surrounding blanks trimmed. A missing or unparsable
// line is an error wrapping dynamo.ErrInvalidInput; a blank restart line is
// an error wrapping dynamo.ErrRestart.
func ParseInput(r io.Reader) (*Config, error) {
	sc := bufio.NewScanner(r)
	lines := make([]string, 0, len(inputFields))
	for _, field := range inputFields {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("%w: reading %s: %v", dynamo.ErrInvalidInput, field, err)
			}
			return nil, fmt.Errorf("%w: problem reading input: missing %s", dynamo.ErrInvalidInput, field)
		}
		lines = append(lines, stripLine(sc.Text()))
	}

	cfg := &Config{
		Restart:    lines[6],
		Trajectory: lines[7],
		Energy:     lines[8],
	}

	var err error
	parseInt := func(i int, dst *int) {
		if err != nil {
			return
		}
		v, perr := parseCount(firstField(lines[i]))
		if perr != nil {
			err = fmt.Errorf("%w: %s: %q is not an integer", dynamo.ErrInvalidInput, inputFields[i], lines[i])
			return
		}
		*dst = v
	}
	parseFloat := func(i int, dst *float64) {
		if err != nil {
			return
		}
		*dst, err = strconv.ParseFloat(firstField(lines[i]), 64)
		if err != nil {
			err = fmt.Errorf("%w: %s: %q is not a number", dynamo.ErrInvalidInput, inputFields[i], lines[i])
		}
	}

	parseInt(0, &cfg.NumAtoms)
	parseFloat(1, &cfg.Mass)
	parseFloat(2, &cfg.Epsilon)
	parseFloat(3, &cfg.Sigma)
	parseFloat(4, &cfg.Rcut)
	parseFloat(5, &cfg.Box)
	parseInt(9, &cfg.NSteps)
	parseFloat(10, &cfg.Dt)
	parseInt(11, &cfg.NPrint)
	if err != nil {
		return nil, err
	}
	if cfg.Restart == "" {
		return nil, fmt.Errorf("%w: input script names no restart file", dynamo.ErrRestart)
	}
	return cfg, nil
}

// parseCount accepts plain integers and integral decimals such as "108.0".
func parseCount(s string) (int, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not integral", s)
	}
	return int(f), nil
}

func stripLine(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return s
}

// WriteInput renders cfg as an input script, the inverse of ParseInput.
func WriteInput(w io.Writer, cfg *Config) error {
	_, err := fmt.Fprintf(w,
		"%d               # natoms\n"+
			"%g               # mass in AMU\n"+
			"%g               # epsilon in kcal/mol\n"+
			"%g               # sigma in angstrom\n"+
			"%g               # rcut in angstrom\n"+
			"%g               # box length (in angstrom)\n"+
			"%s               # restart\n"+
			"%s               # trajectory\n"+
			"%s               # energies\n"+
			"%d               # nr MD steps\n"+
			"%g               # MD time step (in fs)\n"+
			"%d               # output print frequency\n",
		cfg.NumAtoms, cfg.Mass, cfg.Epsilon, cfg.Sigma, cfg.Rcut, cfg.Box,
		cfg.Restart, cfg.Trajectory, cfg.Energy, cfg.NSteps, cfg.Dt, cfg.NPrint)
	return err
}
