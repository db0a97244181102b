package services

import (
	"strings"
	"unicode/utf8"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

type TextChunker interface {
	ChunkText(text string, maxChunkSize int, overlap int) []string
	ChunkRubric(docID, docType, source, text string) []RubricChunk
}

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

// ChunkRubric splits a rubric document with the default window.
func (tc *textChunker) ChunkRubric(docID, docType, source, text string) []RubricChunk {
	parts := tc.ChunkText(text, defaultChunkSize, defaultChunkOverlap)
	chunks := make([]RubricChunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, RubricChunk{
			DocID:   docID,
			DocType: docType,
			Source:  source,
			Index:   i,
			Text:    part,
		})
	}
	return chunks
}

// ChunkText packs paragraphs into chunks of at most maxChunkSize runes,
// falling back to sentences for oversized paragraphs. Each new chunk starts
// with the last overlap runes of the previous one.
func (tc *textChunker) ChunkText(text string, maxChunkSize int, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	b := &chunkBuilder{max: maxChunkSize, overlap: overlap}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if utf8.RuneCountInString(para) <= maxChunkSize {
			b.add(para, "\n\n")
			continue
		}
		for _, sentence := range splitIntoSentences(para) {
			b.add(sentence, " ")
		}
	}

	return b.finish()
}

type chunkBuilder struct {
	max     int
	overlap int
	current strings.Builder
	size    int
	chunks  []string
}

func (b *chunkBuilder) add(piece, sep string) {
	pieceLen := utf8.RuneCountInString(piece)
	if b.size > 0 && b.size+len(sep)+pieceLen > b.max {
		prev := b.current.String()
		b.chunks = append(b.chunks, prev)
		b.current.Reset()
		b.size = 0

		if tail := getLastNChars(prev, b.overlap); tail != "" {
			b.current.WriteString(tail)
			b.size = utf8.RuneCountInString(tail)
		}
	}

	if b.size > 0 {
		b.current.WriteString(sep)
		b.size += len(sep)
	}
	b.current.WriteString(piece)
	b.size += pieceLen
}

func (b *chunkBuilder) finish() []string {
	if b.size > 0 {
		b.chunks = append(b.chunks, b.current.String())
	}
	return b.chunks
}

func splitIntoSentences(text string) []string {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var result []string
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

func getLastNChars(text string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(text)
	if len(runes) <= n {
		return text
	}

	return string(runes[len(runes)-n:])
}
