// Package sim sequences the MD kernel pipeline on a compute device.
//
// A [Simulator] owns the device-resident particle state for a run:
//
//	s := sim.New(dev, params)
//	err := s.Setup(particles)
//	res, err := s.Run(ctx)
//	s.Close()
//
// Each step runs verlet_first, azzero+force, verlet_second and, one step
// ahead of every output, the ekin kernel. Readbacks for an output are taken
// during the preceding step and held in a single-slot staging area until
// the output consumes them.
package sim
