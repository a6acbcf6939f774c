// Package transcript models diarized transcription output and the
// speaker-delimited chunks rendered into episode pages.
package transcript

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// UnknownSpeaker is the display name for any speaker id without a mapping.
const UnknownSpeaker = "Unknown"

// Segment is one diarized utterance from the transcription service.
type Segment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
}

// Document is the transcription artifact: {"segments": [...]}.
type Document struct {
	Segments []Segment `json:"segments"`
}

// Parse decodes a transcription artifact.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode transcript: %w", err)
	}
	return doc, nil
}

// Chunk is a run of consecutive segments from one speaker.
type Chunk struct {
	Start   float64 `json:"start"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Chunks merges contiguous same-speaker segments. Segments without a speaker
// label are dropped. Text ending a sentence gets a trailing space so merged
// sentences do not run together.
func Chunks(segments []Segment) []Chunk {
	var out []Chunk
	for _, seg := range segments {
		if seg.Speaker == "" {
			continue
		}
		text := seg.Text
		if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!") {
			text += " "
		}
		if n := len(out); n > 0 && out[n-1].Speaker == seg.Speaker {
			out[n-1].Text += text
			continue
		}
		out = append(out, Chunk{Start: seg.Start, Speaker: seg.Speaker, Text: text})
	}
	return out
}

// Speakers returns the distinct speaker ids in chunks, sorted.
func Speakers(chunks []Chunk) []string {
	seen := make(map[string]struct{})
	for _, c := range chunks {
		seen[c.Speaker] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}

// SpeakerMap maps diarization ids (SPEAKER_00) to display names.
type SpeakerMap map[string]string

// Name returns the display name for id, or UnknownSpeaker.
func (m SpeakerMap) Name(id string) string {
	if name, ok := m[id]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return UnknownSpeaker
}

// DegradedMap maps every speaker in chunks to UnknownSpeaker. It stands in
// when attribution fails for good so the episode can still be published.
func DegradedMap(chunks []Chunk) SpeakerMap {
	m := SpeakerMap{}
	for _, id := range Speakers(chunks) {
		m[id] = UnknownSpeaker
	}
	if len(m) == 0 {
		m["SPEAKER_00"] = UnknownSpeaker
	}
	return m
}

// ParseSpeakerMap decodes a speaker-map artifact.
func ParseSpeakerMap(data []byte) (SpeakerMap, error) {
	m := SpeakerMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode speaker map: %w", err)
	}
	return m, nil
}
