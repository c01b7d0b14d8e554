package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// ReadRestart loads n positions followed by n velocities, one x y z triple
// per particle, separated by arbitrary whitespace.
func ReadRestart(path string, n int) (*dynamo.Particles, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrRestart, err)
	}
	defer f.Close()

	p, err := DecodeRestart(f, n)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func DecodeRestart(r io.Reader, n int) (*dynamo.Particles, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	p := dynamo.NewParticles(n)
	next := func() (float64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, io.ErrUnexpectedEOF
		}
		return strconv.ParseFloat(sc.Text(), 64)
	}

	for block, dst := range [][3][]float64{{p.Rx, p.Ry, p.Rz}, {p.Vx, p.Vy, p.Vz}} {
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				v, err := next()
				if err != nil {
					what := "position"
					if block == 1 {
						what = "velocity"
					}
					return nil, fmt.Errorf("%w: %s %d: %v", dynamo.ErrRestart, what, i, err)
				}
				dst[c][i] = v
			}
		}
	}
	return p, nil
}

// WriteRestart stores p in the format read by ReadRestart.
func WriteRestart(path string, p *dynamo.Particles) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if err := EncodeRestart(w, p); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func EncodeRestart(w io.Writer, p *dynamo.Particles) error {
	for _, block := range [][3][]float64{{p.Rx, p.Ry, p.Rz}, {p.Vx, p.Vy, p.Vz}} {
		for i := range block[0] {
			if _, err := fmt.Fprintf(w, "%20.14f %20.14f %20.14f\n", block[0][i], block[1][i], block[2][i]); err != nil {
				return err
			}
		}
	}
	return nil
}
