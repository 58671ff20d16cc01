package platform

import (
	"strings"
	"testing"
)

func TestSplitAtWordPrefersWordBoundary(t *testing.T) {
	head, rest := SplitAtWord("hello brave new world", 11)
	if head != "hello brave" {
		t.Errorf("expected split at word boundary, got head %q", head)
	}
	if rest != "new world" {
		t.Errorf("expected remainder without leading space, got %q", rest)
	}
}

func TestSplitAtWordShortTextUntouched(t *testing.T) {
	head, rest := SplitAtWord("short", 280)
	if head != "short" || rest != "" {
		t.Errorf("expected short text unsplit, got %q / %q", head, rest)
	}
}

func TestSplitAtWordCutsOversizedWord(t *testing.T) {
	word := strings.Repeat("x", 40)
	head, rest := SplitAtWord(word, 10)
	if len(head) != 10 {
		t.Errorf("expected a hard cut at the limit, got %d chars", len(head))
	}
	if head+rest != word {
		t.Error("expected no characters lost in the cut")
	}
}

func TestBuildThreadChunksRespectsLimit(t *testing.T) {
	text := strings.Repeat("word ", 200)
	text = strings.TrimSpace(text)

	chunks := BuildThreadChunks(text, DefaultMaxPostLength)
	if len(chunks) < 2 {
		t.Fatalf("expected the text to split into multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > DefaultMaxPostLength {
			t.Errorf("chunk %d exceeds the limit: %d chars", i, len(chunk))
		}
		if i < len(chunks)-1 && !strings.HasSuffix(chunk, ContinuationMarker) {
			t.Errorf("chunk %d is missing the continuation marker", i)
		}
	}
	if strings.HasSuffix(chunks[len(chunks)-1], ContinuationMarker) {
		t.Error("final chunk must not carry a continuation marker")
	}
}

func TestBuildThreadChunksShortText(t *testing.T) {
	chunks := BuildThreadChunks("fits in one post", DefaultMaxPostLength)
	if len(chunks) != 1 || chunks[0] != "fits in one post" {
		t.Errorf("expected a single untouched chunk, got %v", chunks)
	}
}

func TestBuildThreadChunksPreservesWords(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("alpha beta gamma ", 60))
	chunks := BuildThreadChunks(text, DefaultMaxPostLength)

	var rejoined []string
	for _, chunk := range chunks {
		rejoined = append(rejoined, strings.TrimSuffix(chunk, ContinuationMarker))
	}
	if strings.Join(rejoined, " ") != text {
		t.Error("expected rejoined chunks to reproduce the original text")
	}
}
