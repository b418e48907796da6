package knowledge

import "strings"

// maxChunksPerPage is a hard ceiling regardless of configured chunk size,
// so one huge page cannot flood the embedding service.
const maxChunksPerPage = 40

// SplitChunks cuts text into chunks of at most chunkChars runes, preferring
// to break on whitespace near the boundary so sentences stay intact.
func SplitChunks(text string, chunkChars int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]string, 0, 8)

	for len(runes) > 0 && len(chunks) < maxChunksPerPage {
		if len(runes) <= chunkChars {
			chunks = append(chunks, strings.TrimSpace(string(runes)))
			break
		}

		cut := chunkChars
		// scan back up to 20% of the chunk for a whitespace break
		limit := chunkChars - chunkChars/5
		for i := chunkChars; i > limit; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}

		chunk := strings.TrimSpace(string(runes[:cut]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
	}

	return chunks
}
