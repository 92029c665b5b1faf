package audio

import (
	"strconv"
	"strings"

	"speechline/internal/media/ffprobe"
)

// Selection describes the audio stream chosen for speech detection.
type Selection struct {
	Primary      ffprobe.Stream
	PrimaryIndex int
	// Candidates is the number of audio streams considered.
	Candidates int
}

// Found reports whether any audio stream was selected.
func (s Selection) Found() bool {
	return s.PrimaryIndex >= 0
}

// PrimaryLabel returns a human-readable summary of the selected primary stream.
func (s Selection) PrimaryLabel() string {
	if s.PrimaryIndex < 0 {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select returns the audio stream that best represents the programme's
// dialogue. English tracks are preferred (falling back to all tracks when
// none are tagged English); among those, commentary and audio-description
// tracks are demoted, the default-flagged track is favoured, then channel
// count and lossless sources break ties.
func Select(streams []ffprobe.Stream) Selection {
	candidates := buildCandidates(streams)
	if len(candidates) == 0 {
		return Selection{PrimaryIndex: -1}
	}

	pool := candidates.english()
	if len(pool) == 0 {
		pool = candidates
	}

	primary := choosePrimary(pool)
	return Selection{
		Primary:      primary.stream,
		PrimaryIndex: primary.stream.Index,
		Candidates:   len(candidates),
	}
}

// candidate captures the derived metadata used for audio ranking.
type candidate struct {
	stream         ffprobe.Stream
	order          int
	language       string
	title          string
	isEnglish      bool
	isSecondary    bool
	isLossless     bool
	channels       int
	defaultFlagged bool
}

type candidateList []candidate

func (c candidateList) english() candidateList {
	result := make(candidateList, 0, len(c))
	for _, cand := range c {
		if cand.isEnglish {
			result = append(result, cand)
		}
	}
	return result
}

func choosePrimary(candidates candidateList) candidate {
	best := candidates[0]
	bestScore := scorePrimary(best)
	for i := 1; i < len(candidates); i++ {
		score := scorePrimary(candidates[i])
		if score > bestScore {
			best = candidates[i]
			bestScore = score
		}
	}
	return best
}

func scorePrimary(cand candidate) float64 {
	score := 0.0

	// Commentary over the main mix would mark the wrong regions as speech.
	if cand.isSecondary {
		score -= 2000
	}
	if cand.defaultFlagged {
		score += 500
	}

	switch {
	case cand.channels >= 6:
		score += 300
	case cand.channels >= 2:
		score += 200
	case cand.channels == 1:
		score += 150
	default:
		score += 100
	}

	if cand.isLossless {
		score += 50
	}

	// Prefer earlier tracks when scores tie.
	score -= float64(cand.order) * 0.1

	return score
}

func buildCandidates(streams []ffprobe.Stream) candidateList {
	result := make(candidateList, 0)
	order := 0
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		cand := candidate{
			stream:         stream,
			order:          order,
			language:       normalizeLanguage(stream.Tags),
			title:          normalizeTitle(stream.Tags),
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition != nil && stream.Disposition["default"] == 1,
		}
		cand.isEnglish = strings.HasPrefix(cand.language, "en")
		cand.isSecondary = detectSecondary(stream, cand.title)
		cand.isLossless = detectLossless(stream)
		result = append(result, cand)
		order++
	}
	return result
}

func normalizeLanguage(tags map[string]string) string {
	for _, key := range []string{"language", "LANGUAGE", "Language", "language_ietf", "LANG"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func normalizeTitle(tags map[string]string) string {
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case layout == "mono":
		return 1
	case layout == "stereo":
		return 2
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "5.1"):
		return 6
	}
	total := 0
	for _, part := range strings.Split(layout, ".") {
		part = strings.Trim(part, "abcdefghijklmnopqrstuvwxyz ()")
		if n, err := strconv.Atoi(part); err == nil {
			total += n
		}
	}
	return total
}

func detectSecondary(stream ffprobe.Stream, normalizedTitle string) bool {
	if stream.Disposition != nil {
		if stream.Disposition["comment"] == 1 || stream.Disposition["visual_impaired"] == 1 {
			return true
		}
	}
	for _, keyword := range []string{"commentary", "audio description", "descriptive"} {
		if strings.Contains(normalizedTitle, keyword) {
			return true
		}
	}
	return false
}

func detectLossless(stream ffprobe.Stream) bool {
	name := strings.ToLower(stream.CodecName)
	if strings.HasPrefix(name, "pcm_") {
		return true
	}
	switch name {
	case "truehd", "flac", "mlp", "alac":
		return true
	}
	long := strings.ToLower(stream.CodecLong)
	return strings.Contains(long, "lossless") || strings.Contains(long, "master audio")
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := make([]string, 0, 4)
	if lang := normalizeLanguage(stream.Tags); lang != "" {
		parts = append(parts, lang)
	}
	codec := stream.CodecLong
	if codec == "" {
		codec = stream.CodecName
	}
	if codec != "" {
		parts = append(parts, codec)
	}
	if stream.Channels > 0 {
		parts = append(parts, strconv.Itoa(stream.Channels)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, title)
	}
	if len(parts) == 0 {
		return "audio"
	}
	return strings.Join(parts, " | ")
}
