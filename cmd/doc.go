// Package cmd implements the command-line interface of dFlux. It replays
// scenario files against a reactor and inspects the snapshots it writes.
//
// The package is organized into several subpackages:
//
//   - run: Replays scenario files (document stores, getters, observers and
//     dispatch steps) and optionally loads and writes snapshots
//   - inspect: Prints the header and state of snapshot files
//   - perf: Measures dispatch and evaluation throughput (directly and through a dispatcher)
//   - util: Shared utilities for command-line processing, configuration and logging (internal use)
//
// See dflux -help for a list of all commands.
package cmd
