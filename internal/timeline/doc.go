// Package timeline accumulates per-file speech frame ranges for a run and
// serializes them as a Final Cut Pro 7 interchange (xmeml v4) document.
//
// A Timeline is append-only. Export is a pure function of the appended
// entries, so the pipeline can call it after every file and rewrite the
// output artifact with the full document each time.
package timeline
