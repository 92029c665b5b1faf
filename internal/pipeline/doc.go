// Package pipeline drives one speechline run: it expands the input paths into
// candidate files, then for each file probes the frame rate, extracts audio
// into a scratch directory, dispatches speech detection, appends the frame
// ranges to the timeline and rewrites the output document.
//
// Files are processed strictly in order on the calling goroutine. The output
// is rewritten in full after every file so an interrupted run leaves a valid
// document covering every file completed so far.
package pipeline
