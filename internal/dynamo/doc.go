// Package dynamo provides the core types shared by the MD pipeline.
//
//   - [Params]: physical inputs of a run
//   - [Derived]: constants precomputed once from Params
//   - [Particles]: host-side staging arrays
//   - [State]: step index and energy aggregates
//   - [Frame] and [Observer]: output samples and their consumers
//
// Units are kcal/mol for energy, Angstrom for length, amu for mass and
// femtoseconds for time.
package dynamo
