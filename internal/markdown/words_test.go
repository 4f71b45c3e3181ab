package markdown

import "testing"

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Climate change is bad.", 4},
		{"This is **bold** text", 4},
		{"- one\n- two\n1. three", 3},
		{"## Heading here\n\nbody --- text", 4},
		{"see [the docs](https://example.com)", 3},
		{"wait ... what", 2},
	}
	for _, tt := range tests {
		if got := CountWords(tt.in); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
