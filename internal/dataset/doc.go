// Package dataset stores the channel × sample matrices replayed by the
// simulated acquisition device.
//
// Datasets live in a SQLite file in a single table:
//
//	datasets(name TEXT PRIMARY KEY, channels INTEGER, samples INTEGER, data BLOB)
//
// data holds channels×samples big-endian float32 values, row by row (one row
// per receive channel). Synthetic builds a pulse-echo matrix in memory for
// running without a data file.
package dataset
