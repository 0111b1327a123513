package docs

import "strings"

const (
	defaultSentencesPerChunk = 15
	defaultChunkOverlap      = 3
)

// Chunker splits text into overlapping windows of sentences. The
// overlap keeps context that straddles a chunk boundary retrievable
// from both sides.
type Chunker struct {
	SentencesPerChunk int
	Overlap           int
}

// Chunk normalizes whitespace, splits into sentences, and windows them
// with overlap. Overlap must stay below the window size or the scan
// would never advance.
func (c Chunker) Chunk(text string) []string {
	size := c.SentencesPerChunk
	if size <= 0 {
		size = defaultSentencesPerChunk
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
		if overlap >= size {
			overlap = 0
		}
	}

	sentences := splitSentences(strings.Join(strings.Fields(text), " "))
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(sentences); start += size - overlap {
		end := start + size
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, strings.Join(sentences[start:end], " "))
	}
	return chunks
}

// splitSentences breaks text on terminal punctuation followed by a
// space. Abbreviation handling is deliberately simple; retrieval is
// tolerant of slightly ragged sentence boundaries.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			atEnd := i == len(runes)-1
			if atEnd || runes[i+1] == ' ' {
				if s := strings.TrimSpace(b.String()); s != "" {
					sentences = append(sentences, s)
				}
				b.Reset()
			}
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
