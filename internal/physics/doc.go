// Package physics provides the Lennard-Jones interaction and the device
// kernels that evaluate it:
//
//   - [LennardJones]: closed-form pair force and energy with a hard cutoff
//   - [MinImage]: minimum-image wrapping for a cubic periodic box
//   - [ZeroKernel]: clears force buffers
//   - [ForceKernel]: all-pairs force and per-work-item potential energy
//
// [Lattice] and [Thermalize] build initial configurations for presets.
package physics
