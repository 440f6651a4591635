// Package scaffold bootstraps the Capacitor Android project around a staged
// web root.
//
// Steps run in a fixed order and stop at the first failure. Every tool runs
// with the workspace as an explicit working directory; the process working
// directory is never changed.
package scaffold
