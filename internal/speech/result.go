package speech

import "math"

// snapTolerance absorbs float noise such as 0.1*30 = 3.0000000000000004 so a
// span ending exactly on a frame boundary does not gain an extra frame.
const snapTolerance = 1e-6

// Segment is one detected speech span in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// Result is the ordered speech interval set for one audio file. Ordering and
// non-overlap are guaranteed by the detector and not re-validated here.
type Result struct {
	Segments []Segment
}

// Len returns the number of detected segments.
func (r Result) Len() int {
	return len(r.Segments)
}

// SpeechSeconds returns the summed duration of all segments.
func (r Result) SpeechSeconds() float64 {
	total := 0.0
	for _, seg := range r.Segments {
		if d := seg.Duration(); d > 0 {
			total += d
		}
	}
	return total
}

// FrameRange is a half-open range of video frame indices [Start, End).
type FrameRange struct {
	Start int64
	End   int64
}

// Len returns the number of frames covered.
func (f FrameRange) Len() int64 {
	return f.End - f.Start
}

// Frames is the frame interval set appended to the timeline for one file.
type Frames []FrameRange

// TotalFrames returns the summed length of every range.
func (f Frames) TotalFrames() int64 {
	var total int64
	for _, r := range f {
		total += r.Len()
	}
	return total
}

// ToFrames maps each segment to frame indices at fps: the start frame is
// floor(start*fps) and the exclusive end frame is ceil(end*fps). Ranges that
// end up empty are dropped. A non-positive fps yields no frames.
func (r Result) ToFrames(fps float64) Frames {
	if !(fps > 0) || math.IsInf(fps, 0) {
		return Frames{}
	}
	frames := make(Frames, 0, len(r.Segments))
	for _, seg := range r.Segments {
		start := int64(math.Floor(snap(seg.Start * fps)))
		end := int64(math.Ceil(snap(seg.End * fps)))
		if start < 0 {
			start = 0
		}
		if end <= start {
			continue
		}
		frames = append(frames, FrameRange{Start: start, End: end})
	}
	return frames
}

func snap(v float64) float64 {
	if rounded := math.Round(v); math.Abs(v-rounded) < snapTolerance {
		return rounded
	}
	return v
}
