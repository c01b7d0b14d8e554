// Package viz renders a live terminal dashboard of a running simulation
// with bubbletea, lipgloss and asciigraph.
package viz
