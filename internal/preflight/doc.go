// Package preflight provides readiness checks for the binaries and
// filesystem paths speechline depends on.
//
// The detect command calls RunAll before touching any input and refuses to
// start when a required check fails; "speechline check" renders the same
// results as a table.
package preflight
