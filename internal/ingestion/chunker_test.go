package ingestion_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/maraichr/docpipe/internal/ingestion"
)

func TestChunkText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		target int
		want   []string
	}{
		{
			name:   "empty",
			text:   "",
			target: 10,
			want:   nil,
		},
		{
			name:   "whitespace only",
			text:   "  \n \n\t",
			target: 10,
			want:   nil,
		},
		{
			name:   "fits in one chunk",
			text:   "One. Two.",
			target: 100,
			want:   []string{"One. Two."},
		},
		{
			name:   "sentences packed greedily",
			text:   "Aaaa. Bbbb. Cccc.",
			target: 11,
			want:   []string{"Aaaa. Bbbb.", "Cccc."},
		},
		{
			name:   "paragraphs are joined with a space",
			text:   "First line.\n\nSecond line.",
			target: 100,
			want:   []string{"First line. Second line."},
		},
		{
			name:   "oversized sentence kept whole",
			text:   "This sentence is far longer than the target. Short.",
			target: 10,
			want:   []string{"This sentence is far longer than the target.", "Short."},
		},
		{
			name:   "terminator runs stay together",
			text:   "Really?! Yes.",
			target: 8,
			want:   []string{"Really?!", "Yes."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ingestion.ChunkText(tt.text, tt.target)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// A chunk is flushed only once adding a sentence pushes it past the target,
// so every chunk made of more than one sentence fits the target.
func TestChunkText_PackingBoundary(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet. ", 60)
	const target = 120
	chunks := ingestion.ChunkText(text, target)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		n := utf8.RuneCountInString(c)
		if n > target && strings.Count(c, ".") > 1 {
			t.Errorf("chunk %d has %d runes and several sentences", i, n)
		}
		if c != strings.TrimSpace(c) || c == "" {
			t.Errorf("chunk %d is not trimmed: %q", i, c)
		}
	}
	if got := strings.Join(chunks, " "); got != strings.TrimSpace(text) {
		t.Error("chunks do not reassemble into the source text")
	}
}

func TestChunkText_CountsRunes(t *testing.T) {
	// Each sentence is 5 runes but 10 bytes.
	text := "ééééé. ààààà."
	chunks := ingestion.ChunkText(text, 13)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk when measured in runes, got %q", chunks)
	}
}
