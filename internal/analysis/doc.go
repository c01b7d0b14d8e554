// Package analysis post-processes the energy series of stored runs.
package analysis
