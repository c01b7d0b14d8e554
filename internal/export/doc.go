// Package export renders particle snapshots and energy series as SVG.
package export
