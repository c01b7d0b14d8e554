package analysis

import (
	"math"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// DriftStats summarizes how the total energy of a run wandered.
type DriftStats struct {
	Initial  float64
	Final    float64
	MaxDrift float64
	Mean     float64
	StdDev   float64
}

func EnergyDrift(frames []dynamo.State) DriftStats {
	if len(frames) == 0 {
		return DriftStats{}
	}
	s := DriftStats{Initial: frames[0].Etot(), Final: frames[len(frames)-1].Etot()}

	sum := 0.0
	for _, f := range frames {
		e := f.Etot()
		sum += e
		if s.Initial != 0 {
			s.MaxDrift = math.Max(s.MaxDrift, math.Abs(e-s.Initial)/math.Abs(s.Initial))
		}
	}
	s.Mean = sum / float64(len(frames))

	variance := 0.0
	for _, f := range frames {
		d := f.Etot() - s.Mean
		variance += d * d
	}
	s.StdDev = math.Sqrt(variance / float64(len(frames)))
	return s
}

// Series extracts one quantity per frame for plotting.
func Series(frames []dynamo.State, pick func(dynamo.State) float64) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = pick(f)
	}
	return out
}
