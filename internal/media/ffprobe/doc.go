// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video stream properties, including frame rates
//   - Properties: the summary the pipeline consumes (frame rate first)
//   - Prober: memoizes probes so analysis and the per-file loop share one run
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Prober.Probe: returns Properties, or ErrNoFrameRate when the file has
//     no usable video frame rate
package ffprobe
