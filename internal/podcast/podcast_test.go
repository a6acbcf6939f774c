package podcast

import "testing"

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{14, "14"},
		{20.5, "20.5"},
		{0.5, "0.5"},
		{214.5, "214.5"},
		{9001, "9001"},
	}
	for _, tc := range tests {
		if got := FormatNumber(tc.in); got != tc.want {
			t.Fatalf("FormatNumber(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	for input, want := range map[string]float64{"14": 14, "14.0": 14, " 20.5 ": 20.5} {
		got, err := ParseNumber(input)
		if err != nil || got != want {
			t.Fatalf("ParseNumber(%q) = %v, %v", input, got, err)
		}
	}
	for _, bad := range []string{"", "abc", "-1", "NaN"} {
		if _, err := ParseNumber(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestEpisodePageURL(t *testing.T) {
	p := Podcast{DocBaseURL: "https://tgn.example.com/"}
	if got := p.EpisodePageURL(20.5); got != "https://tgn.example.com/20.5/episode/" {
		t.Fatalf("unexpected url %q", got)
	}
}
