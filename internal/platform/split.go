package platform

import "strings"

// ContinuationMarker is appended to every non-final chunk of a split thread.
const ContinuationMarker = "..."

// SplitAtWord splits text at the last word boundary at or before limit. It
// never cuts mid-word unless a single word exceeds the limit, in which case
// the word itself is cut.
func SplitAtWord(text string, limit int) (string, string) {
	if limit <= 0 || len(text) <= limit {
		return text, ""
	}
	cut := strings.LastIndexByte(text[:limit+1], ' ')
	if cut <= 0 {
		cut = limit
	}
	head := strings.TrimRight(text[:cut], " ")
	rest := strings.TrimLeft(text[cut:], " ")
	return head, rest
}

// BuildThreadChunks splits text into chunks that each fit the platform limit,
// reserving room for the continuation marker on every chunk but the last.
func BuildThreadChunks(text string, limit int) []string {
	if limit <= len(ContinuationMarker) {
		return []string{text}
	}
	var chunks []string
	remaining := text
	for len(remaining) > limit {
		head, rest := SplitAtWord(remaining, limit-len(ContinuationMarker))
		chunks = append(chunks, head+ContinuationMarker)
		remaining = rest
	}
	chunks = append(chunks, remaining)
	return chunks
}
