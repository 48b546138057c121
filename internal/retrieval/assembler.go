package retrieval

import (
	"unicode"

	"github.com/yashdarak08/LLM-Business-Intelligence-Assistant/internal/index"
)

// ContextChunk is one chunk selected for the prompt, with provenance.
type ContextChunk struct {
	ChunkID    string
	DocumentID string
	Text       string
	Score      float64
	Truncated  bool
}

// PromptContext is the assembled input for the generation stage.
type PromptContext struct {
	Query  string
	Chunks []ContextChunk
	Size   int // total chunk text length in runes, never above the budget
}

// Assembler packs retrieved chunks into a prompt context under a rune budget.
type Assembler struct {
	budget int
}

func NewAssembler(budget int) *Assembler {
	if budget <= 0 {
		budget = 1
	}
	return &Assembler{budget: budget}
}

// Assemble greedily includes hits in descending score order until the next
// chunk would exceed the budget. If the best chunk alone is over budget it
// is cut back to a sentence or word boundary and marked truncated.
func (a *Assembler) Assemble(query string, hits []index.Hit) PromptContext {
	pc := PromptContext{Query: query}
	for _, h := range hits {
		text := h.Text
		size := len([]rune(text))
		truncated := false

		if pc.Size+size > a.budget {
			if len(pc.Chunks) > 0 {
				break
			}
			text = truncateAtBoundary(text, a.budget)
			size = len([]rune(text))
			truncated = true
		}

		pc.Chunks = append(pc.Chunks, ContextChunk{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Text:       text,
			Score:      h.Score,
			Truncated:  truncated,
		})
		pc.Size += size
	}
	return pc
}

// truncateAtBoundary cuts text to at most limit runes, preferring the last
// sentence end, then the last whitespace, then a hard cut.
func truncateAtBoundary(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	sentence, space := -1, -1
	for i := limit - 1; i >= 0; i-- {
		r := runes[i]
		if sentence < 0 && isSentenceEnd(r) {
			sentence = i + 1
		}
		if space < 0 && unicode.IsSpace(r) {
			space = i
		}
		if sentence >= 0 && space >= 0 {
			break
		}
	}
	switch {
	case sentence > 0:
		return string(runes[:sentence])
	case space > 0:
		return string(runes[:space])
	default:
		return string(runes[:limit])
	}
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n':
		return true
	}
	return false
}
