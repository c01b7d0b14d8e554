package sim

import (
	"errors"
	"fmt"
)

// ErrNoStagedData is returned when an output step finds no complete capture
// to report.
var ErrNoStagedData = errors.New("sim: no staged readback to consume")

const (
	havePositions uint8 = 1 << iota
	haveEpot
	haveEkin

	haveAll = havePositions | haveEpot | haveEkin
)

// staging is the single-slot pipeline between the readbacks issued one step
// ahead of an output and the output itself. A capture fills the slot, take
// hands it out once and invalidates it. The arrays are reused scratch space:
// the next capture overwrites them.
type staging struct {
	step       int
	rx, ry, rz []float64
	epot, ekin []float64
	have       uint8
}

func newStaging(natoms, items int) *staging {
	return &staging{
		rx:   make([]float64, natoms),
		ry:   make([]float64, natoms),
		rz:   make([]float64, natoms),
		epot: make([]float64, items),
		ekin: make([]float64, items),
	}
}

// begin starts a new capture, discarding anything not yet consumed.
func (s *staging) begin(step int) {
	s.step = step
	s.have = 0
}

func (s *staging) mark(part uint8) { s.have |= part }

func (s *staging) ready() bool { return s.have == haveAll }

// take returns the step the slot was captured at and invalidates it.
func (s *staging) take() (int, error) {
	if !s.ready() {
		return 0, fmt.Errorf("%w (captured parts %03b)", ErrNoStagedData, s.have)
	}
	s.have = 0
	return s.step, nil
}
