package ingestion

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultChunkTargetSize is the target chunk length in characters.
const DefaultChunkTargetSize = 700

// ChunkText packs sentences greedily into chunks of about targetSize characters.
// Paragraphs are split on newlines and sentences after '.', '!' or '?' followed
// by whitespace. A sentence is appended to the current chunk unless that would
// push it past targetSize, in which case the current chunk is flushed first. A
// single sentence longer than targetSize becomes its own chunk. Chunks carry over
// paragraph boundaries.
func ChunkText(text string, targetSize int) []string {
	if targetSize <= 0 {
		targetSize = DefaultChunkTargetSize
	}
	var chunks []string
	current := ""

	for _, paragraph := range strings.Split(text, "\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		for _, sentence := range splitSentences(paragraph) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			candidate := sentence
			if current != "" {
				candidate = current + " " + sentence
			}
			if utf8.RuneCountInString(candidate) > targetSize && current != "" {
				chunks = append(chunks, current)
				current = sentence
			} else {
				current = candidate
			}
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitSentences splits s at every whitespace run that directly follows '.',
// '!' or '?'. The terminator stays with its sentence.
func splitSentences(s string) []string {
	var out []string
	start := 0
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !isTerminator(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
