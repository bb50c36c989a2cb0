// Package util provides small helpers shared by the dFlux packages.
//
// The package contains:
//   - functions: FNV-1a string hashing (64 bit and folded to 31 bit)
//   - statistics: summary statistics (mean, min, max, standard deviation) over samples
//   - queue: an unbounded lock-free multi-producer single-consumer queue
package util
