package timeline

import (
	"encoding/xml"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	xmemlVersion = "4"
	docType      = "<!DOCTYPE xmeml>\n"
	// failedMarker names the sequence marker placed where a failed file
	// would have contributed clips.
	failedMarker = "No speech detected"
)

type xmeml struct {
	XMLName  xml.Name `xml:"xmeml"`
	Version  string   `xml:"version,attr"`
	Sequence sequence `xml:"sequence"`
}

type sequence struct {
	ID       string   `xml:"id,attr"`
	Name     string   `xml:"name"`
	Duration int64    `xml:"duration"`
	Rate     rate     `xml:"rate"`
	Timecode timecode `xml:"timecode"`
	Media    seqMedia `xml:"media"`
	Markers  []marker `xml:"marker,omitempty"`
}

type rate struct {
	Timebase int    `xml:"timebase"`
	NTSC     string `xml:"ntsc"`
}

type timecode struct {
	Rate          rate   `xml:"rate"`
	String        string `xml:"string"`
	Frame         int64  `xml:"frame"`
	DisplayFormat string `xml:"displayformat"`
}

type seqMedia struct {
	Video videoTrackSet `xml:"video"`
	Audio audioTrackSet `xml:"audio"`
}

type videoTrackSet struct {
	Format videoFormat `xml:"format"`
	Track  track       `xml:"track"`
}

type audioTrackSet struct {
	Format audioFormat `xml:"format"`
	Track  track       `xml:"track"`
}

type videoFormat struct {
	Characteristics videoCharacteristics `xml:"samplecharacteristics"`
}

type videoCharacteristics struct {
	Rate             rate   `xml:"rate"`
	Width            int    `xml:"width"`
	Height           int    `xml:"height"`
	PixelAspectRatio string `xml:"pixelaspectratio"`
}

type audioFormat struct {
	Characteristics audioCharacteristics `xml:"samplecharacteristics"`
}

type audioCharacteristics struct {
	Depth      int `xml:"depth"`
	SampleRate int `xml:"samplerate"`
}

type track struct {
	Clips []clipItem `xml:"clipitem"`
}

type clipItem struct {
	ID          string       `xml:"id,attr"`
	Name        string       `xml:"name"`
	Duration    int64        `xml:"duration"`
	Rate        rate         `xml:"rate"`
	Start       int64        `xml:"start"`
	End         int64        `xml:"end"`
	In          int64        `xml:"in"`
	Out         int64        `xml:"out"`
	File        fileRef      `xml:"file"`
	SourceTrack *sourceTrack `xml:"sourcetrack,omitempty"`
}

type sourceTrack struct {
	MediaType  string `xml:"mediatype"`
	TrackIndex int    `xml:"trackindex"`
}

// fileRef is written in full on first use and as a bare id afterwards.
type fileRef struct {
	ID       string     `xml:"id,attr"`
	Name     string     `xml:"name,omitempty"`
	PathURL  string     `xml:"pathurl,omitempty"`
	Rate     *rate      `xml:"rate,omitempty"`
	Duration int64      `xml:"duration,omitempty"`
	Media    *fileMedia `xml:"media,omitempty"`
}

type fileMedia struct {
	Video struct{}   `xml:"video"`
	Audio fileAudio `xml:"audio"`
}

type fileAudio struct {
	ChannelCount int `xml:"channelcount"`
}

type marker struct {
	Name    string `xml:"name"`
	Comment string `xml:"comment"`
	In      int64  `xml:"in"`
	Out     int64  `xml:"out"`
}

// Export renders the timeline as an xmeml v4 document. Clips are laid out
// end-to-end in entry order; in/out are source frames and start/end are
// sequence frames. Export does not mutate the timeline and repeated calls
// return identical bytes.
func (t *Timeline) Export() ([]byte, error) {
	seqRate := rateFor(t.settings.FrameRate)
	titler := cases.Title(language.Und)

	doc := xmeml{
		Version: xmemlVersion,
		Sequence: sequence{
			ID:   "sequence-1",
			Name: t.settings.SequenceName,
			Rate: seqRate,
			Timecode: timecode{
				Rate:          seqRate,
				String:        "00:00:00:00",
				DisplayFormat: displayFormat(seqRate),
			},
			Media: seqMedia{
				Video: videoTrackSet{Format: videoFormat{Characteristics: videoCharacteristics{
					Rate:             seqRate,
					Width:            t.settings.Width,
					Height:           t.settings.Height,
					PixelAspectRatio: "square",
				}}},
				Audio: audioTrackSet{Format: audioFormat{Characteristics: audioCharacteristics{
					Depth:      16,
					SampleRate: t.settings.SampleRate,
				}}},
			},
		},
	}

	written := make(map[string]bool, len(t.entries))
	var cursor int64
	clipIndex := 0
	var audioClips []clipItem

	for _, entry := range t.entries {
		if entry.Failed || len(entry.Frames) == 0 {
			doc.Sequence.Markers = append(doc.Sequence.Markers, marker{
				Name:    failedMarker,
				Comment: entry.Path,
				In:      cursor,
				Out:     -1,
			})
			continue
		}
		srcFPS := entry.FrameRate
		if !(srcFPS > 0) {
			srcFPS = t.settings.FrameRate
		}
		srcRate := rateFor(srcFPS)
		name := clipName(titler, entry.Path)
		duration := entry.Frames[len(entry.Frames)-1].End

		for _, fr := range entry.Frames {
			length := rescale(fr.Len(), srcFPS, t.settings.FrameRate)
			if length < 1 {
				length = 1
			}
			clipIndex++
			video := clipItem{
				ID:       "clipitem-" + strconv.Itoa(clipIndex),
				Name:     name,
				Duration: duration,
				Rate:     srcRate,
				Start:    cursor,
				End:      cursor + length,
				In:       fr.Start,
				Out:      fr.End,
				File:     fileRef{ID: entry.FileID},
			}
			if !written[entry.FileID] {
				written[entry.FileID] = true
				video.File = fullFileRef(entry, name, srcRate, duration)
			}
			audio := video
			audio.ID = video.ID + "-audio"
			audio.File = fileRef{ID: entry.FileID}
			audio.SourceTrack = &sourceTrack{MediaType: "audio", TrackIndex: 1}

			doc.Sequence.Media.Video.Track.Clips = append(doc.Sequence.Media.Video.Track.Clips, video)
			audioClips = append(audioClips, audio)
			cursor += length
		}
	}
	doc.Sequence.Media.Audio.Track.Clips = audioClips
	doc.Sequence.Duration = cursor

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	out := make([]byte, 0, len(xml.Header)+len(docType)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, docType...)
	out = append(out, body...)
	out = append(out, '\n')
	return out, nil
}

func fullFileRef(entry Entry, name string, r rate, duration int64) fileRef {
	return fileRef{
		ID:       entry.FileID,
		Name:     name,
		PathURL:  pathURL(entry.Path),
		Rate:     &r,
		Duration: duration,
		Media:    &fileMedia{Audio: fileAudio{ChannelCount: 1}},
	}
}

// rateFor maps a frame rate to an xmeml rate. NTSC rates such as 29.97 use
// the rounded timebase with the ntsc flag set.
func rateFor(fps float64) rate {
	timebase := int(math.Round(fps))
	if timebase < 1 {
		timebase = 1
	}
	ntsc := math.Abs(fps-float64(timebase)*1000/1001) < 0.005
	flag := "FALSE"
	if ntsc {
		flag = "TRUE"
	}
	return rate{Timebase: timebase, NTSC: flag}
}

func displayFormat(r rate) string {
	if r.NTSC == "TRUE" && (r.Timebase == 30 || r.Timebase == 60) {
		return "DF"
	}
	return "NDF"
}

// rescale converts a source frame count to sequence frames.
func rescale(frames int64, srcFPS, seqFPS float64) int64 {
	if srcFPS == seqFPS {
		return frames
	}
	return int64(math.Round(float64(frames) * seqFPS / srcFPS))
}

func clipName(titler cases.Caser, path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.NewReplacer("_", " ", ".", " ").Replace(stem)
	if name := strings.TrimSpace(titler.String(stem)); name != "" {
		return name
	}
	return base
}

func pathURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Host: "localhost", Path: filepath.ToSlash(abs)}).String()
}
