// Package workspace manages the per-package build directories under the
// temporary root.
//
// A Registry hands out at most one Workspace per package id at a time. A
// second acquire for a busy id is rejected rather than queued, so two
// conversions never write to the same directory. Leftovers from a crashed
// run are wiped when the directory is acquired again.
package workspace
