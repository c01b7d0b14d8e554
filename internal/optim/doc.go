// Package optim searches parameter grids for the lowest scoring point.
package optim
