// Package ledger records batch runs and per-file results in a SQLite
// database (github.com/mattn/go-sqlite3, WAL mode).
//
// Each run gets a UUID. Results carry the BLAKE2b-256 hash of the input
// content and the calibration fingerprint it was processed with, so a later
// run can skip inputs whose last successful result is still current
// ([Ledger.LastSuccess]).
package ledger
