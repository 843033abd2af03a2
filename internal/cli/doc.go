// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. Commands
// stay thin: they build the resolver and logger, then delegate to the
// recipe, assemble, and reconcile packages.
package cli
