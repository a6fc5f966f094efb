package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pdf-rag/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter cuts normalized page text into chunks of at most chunkSize runes,
// with up to chunkOverlap runes shared by neighbouring chunks.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	splitter     textsplitter.TextSplitter
}

// NewSplitter expects 0 <= chunkOverlap < chunkSize, see config.RAGConfig.Validate.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		// normalized text has no sentence punctuation left, so words are
		// the smallest unit we try to keep whole
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{" ", ""}),
			textsplitter.WithLenFunc(utf8.RuneCountInString),
		),
	}
}

// Split returns the ordered chunks for one page of normalized text
func (s *Splitter) Split(text string) ([]string, error) {
	if text == "" {
		return []string{}, nil
	}
	parts, err := s.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("failed to split text: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		for _, c := range enforceLimit(strings.TrimSpace(p), s.chunkSize) {
			if c != "" {
				chunks = append(chunks, c)
			}
		}
	}
	return chunks, nil
}

// enforceLimit cuts anything longer than maxRunes, preferring the last space
// inside the bound
func enforceLimit(text string, maxRunes int) []string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	var out []string
	for len(runes) > maxRunes {
		end := maxRunes
		for i := maxRunes; i > maxRunes/2; i-- {
			if runes[i] == ' ' {
				end = i
				break
			}
		}
		out = append(out, strings.TrimSpace(string(runes[:end])))
		runes = []rune(strings.TrimSpace(string(runes[end:])))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// ExtractPageChunks normalizes and splits every page of doc, in page order.
// The result always has one entry per page; pages without text get an empty
// chunk list.
func (s *Splitter) ExtractPageChunks(doc Document) ([]models.PageChunks, error) {
	numPages := doc.NumPages()
	pages := make([]models.PageChunks, 0, numPages)
	for i := 0; i < numPages; i++ {
		raw, err := doc.PageText(i)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", models.ErrDocumentOpen, i, err)
		}
		chunks, err := s.Split(Normalize(raw))
		if err != nil {
			return nil, err
		}
		label := fmt.Sprintf(models.PageLabelFormat, i)
		log.Debug().Str("page", label).Int("chunks", len(chunks)).Msg("Split page")
		pages = append(pages, models.PageChunks{Label: label, Chunks: chunks})
	}
	return pages, nil
}
