// Package audio picks the dialogue track of a media file and decodes it for
// the speech detector.
//
// Select ranks the audio streams reported by ffprobe: English tracks first
// (falling back to every track when none are tagged), commentary and
// audio-description tracks demoted, then the default flag, channel count and
// lossless sources. Extractor.ExtractWAV decodes the chosen stream to mono
// 16-bit PCM at the configured sample rate inside a per-file scratch
// directory.
package audio
