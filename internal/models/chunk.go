package models

// Chunk is one persisted chunk record
type Chunk struct {
	ChunkID   string
	Title     string
	Content   string
	Embedding []float32
}

// PageChunks holds the ordered chunks extracted from one page.
// Label is "page_<index>" with index counted from 0.
type PageChunks struct {
	Label  string   `json:"label"`
	Chunks []string `json:"chunks"`
}

// SearchRow is a raw row returned by a similarity query
type SearchRow struct {
	ChunkID string
	Title   string
	Content string
	Score   float64
}

// Result is a retrieved chunk ready to be used as prompt context.
type Result struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	ChunkID string  `json:"chunk_id"`
}

type PromptResponse struct {
	Query   string
	Results []Result
	Content string
}
