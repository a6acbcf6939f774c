package transcript

import (
	"reflect"
	"testing"
)

func TestChunksMergesAndSkips(t *testing.T) {
	segments := []Segment{
		{Start: 0, Speaker: "SPEAKER_00", Text: "Welcome back."},
		{Start: 2, Speaker: "SPEAKER_00", Text: "Today we talk divers"},
		{Start: 4, Text: "[music]"},
		{Start: 5, Speaker: "SPEAKER_01", Text: "Great?"},
		{Start: 6, Speaker: "SPEAKER_00", Text: "Yes!"},
	}
	got := Chunks(segments)
	want := []Chunk{
		{Start: 0, Speaker: "SPEAKER_00", Text: "Welcome back. Today we talk divers"},
		{Start: 5, Speaker: "SPEAKER_01", Text: "Great? "},
		{Start: 6, Speaker: "SPEAKER_00", Text: "Yes! "},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Chunks =\n%#v\nwant\n%#v", got, want)
	}
}

func TestChunksIgnoresUnlabelledGapBetweenSameSpeaker(t *testing.T) {
	got := Chunks([]Segment{
		{Start: 0, Speaker: "SPEAKER_00", Text: "One"},
		{Start: 1, Text: "noise"},
		{Start: 2, Speaker: "SPEAKER_00", Text: " two"},
	})
	if len(got) != 1 || got[0].Text != "One two" {
		t.Fatalf("Chunks = %#v", got)
	}
}

func TestSpeakerMapName(t *testing.T) {
	m := SpeakerMap{"SPEAKER_00": "Jason Heaton", "SPEAKER_01": " "}
	if got := m.Name("SPEAKER_00"); got != "Jason Heaton" {
		t.Fatalf("Name = %q", got)
	}
	for _, id := range []string{"SPEAKER_01", "SPEAKER_07"} {
		if got := m.Name(id); got != UnknownSpeaker {
			t.Fatalf("Name(%s) = %q, want Unknown", id, got)
		}
	}
	var nilMap SpeakerMap
	if got := nilMap.Name("SPEAKER_00"); got != UnknownSpeaker {
		t.Fatalf("nil map Name = %q", got)
	}
}

func TestDegradedMapCoversEverySpeaker(t *testing.T) {
	chunks := []Chunk{{Speaker: "SPEAKER_01"}, {Speaker: "SPEAKER_00"}, {Speaker: "SPEAKER_01"}}
	got := DegradedMap(chunks)
	want := SpeakerMap{"SPEAKER_00": UnknownSpeaker, "SPEAKER_01": UnknownSpeaker}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DegradedMap = %v", got)
	}
	if len(DegradedMap(nil)) == 0 {
		t.Fatal("degraded map must never be empty")
	}
}

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(`{"segments":[{"start":1.5,"end":3,"speaker":"SPEAKER_00","text":"Hi."}],"language":"en"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Segments) != 1 || doc.Segments[0].Start != 1.5 {
		t.Fatalf("doc = %+v", doc)
	}
	if _, err := Parse([]byte("nope")); err == nil {
		t.Fatal("expected error")
	}
}
