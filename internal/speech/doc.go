// Package speech wraps the external voice-activity model and the retry
// policy around it.
//
// Service runs one detector instance (one compute device) as a subprocess and
// decodes its JSON line protocol on stdout:
//
//	{"type":"progress","count":3,"total":10}
//	{"type":"speech","start":1.25,"end":4.5}
//	{"type":"error","message":"CUDA out of memory"}
//
// Dispatcher pairs an accelerated and a fallback instance: every round tries
// the accelerated device first and the fallback only after it fails, for at
// most MaxRounds rounds. The returned Outcome is either a Result or
// Exhausted; detector errors never escape as Go errors.
//
// Result.ToFrames converts speech spans to half-open frame ranges.
package speech
