package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// Element label written for every particle in trajectory frames.
const Element = "Ar"

// EnergyHeader is the console column header matching FormatEnergy.
const EnergyHeader = "     NFI            TEMP            EKIN                 EPOT              ETOT"

// FormatEnergy renders one energy-log line without the trailing newline.
func FormatEnergy(s dynamo.State) string {
	return fmt.Sprintf("% 8d % 20.8f % 20.8f % 20.8f % 20.8f", s.Step, s.Temp, s.Ekin, s.Epot, s.Etot())
}

// sink is an optionally file-backed buffered writer.
type sink struct {
	w    *bufio.Writer
	file *os.File
}

func newSink(w io.Writer) sink {
	return sink{w: bufio.NewWriter(w)}
}

func createSink(path string) (sink, error) {
	f, err := os.Create(path)
	if err != nil {
		return sink{}, err
	}
	return sink{w: bufio.NewWriter(f), file: f}, nil
}

func (s sink) Flush() error { return s.w.Flush() }

func (s sink) Close() error {
	err := s.w.Flush()
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// EnergyLog appends one FormatEnergy line per output frame.
type EnergyLog struct {
	sink
	unbuffered bool
}

func NewEnergyLog(w io.Writer) *EnergyLog {
	return &EnergyLog{sink: newSink(w)}
}

// NewConsoleLog writes each line through to w as soon as it is produced.
func NewConsoleLog(w io.Writer) *EnergyLog {
	return &EnergyLog{sink: newSink(w), unbuffered: true}
}

func CreateEnergyLog(path string) (*EnergyLog, error) {
	s, err := createSink(path)
	if err != nil {
		return nil, err
	}
	return &EnergyLog{sink: s}, nil
}

func (e *EnergyLog) OnFrame(f dynamo.Frame) error {
	if _, err := fmt.Fprintln(e.w, FormatEnergy(f.State)); err != nil {
		return err
	}
	if e.unbuffered {
		return e.w.Flush()
	}
	return nil
}

// Trajectory writes XYZ frames.
type Trajectory struct {
	sink
}

func NewTrajectory(w io.Writer) *Trajectory {
	return &Trajectory{sink: newSink(w)}
}

func CreateTrajectory(path string) (*Trajectory, error) {
	s, err := createSink(path)
	if err != nil {
		return nil, err
	}
	return &Trajectory{sink: s}, nil
}

func (t *Trajectory) OnFrame(f dynamo.Frame) error {
	if _, err := fmt.Fprintf(t.w, "%d\n nfi=%d etot=%20.8f\n", len(f.Rx), f.Step, f.Etot()); err != nil {
		return err
	}
	for i := range f.Rx {
		if _, err := fmt.Fprintf(t.w, "%s  %20.8f %20.8f %20.8f\n", Element, f.Rx[i], f.Ry[i], f.Rz[i]); err != nil {
			return err
		}
	}
	return nil
}
