// Package procexec runs external tools (npm, npx, gradle) with an explicit
// working directory and process-group cancellation.
package procexec
