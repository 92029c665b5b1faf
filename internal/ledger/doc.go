// Package ledger records speechline runs and their per-file outcomes in a
// SQLite database.
//
// The ledger is an audit trail only: the pipeline writes a run row when it
// starts, one file row after each file's timeline write, and a final status
// when it stops. Nothing reads the ledger back to skip or resume work; the
// history command renders it for humans.
package ledger
