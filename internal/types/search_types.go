package types

// SearchRequest carries a single query to the backend
type SearchRequest struct {
	Query     string `json:"query"`
	RequestID string `json:"request_id,omitempty"`
}

// Citation is a source that grounds an answer
type Citation struct {
	Title   string `json:"title"`
	URI     string `json:"uri"`
	Snippet string `json:"snippet,omitempty"`
}

// SearchResult is the generated answer plus its ordered citations
type SearchResult struct {
	Answer         string     `json:"answer"`
	Citations      []Citation `json:"citations"`
	SkippedReasons []string   `json:"skipped_reasons,omitempty"`
}

// DocumentSearchRequest asks for ranked documents instead of a generated answer
type DocumentSearchRequest struct {
	Query     string `json:"query"`
	PageSize  int    `json:"page_size,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// DocumentResult is one ranked document
type DocumentResult struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	URI               string   `json:"uri"`
	Snippets          []string `json:"snippets,omitempty"`
	ExtractiveAnswers []string `json:"extractive_answers,omitempty"`
}

// DocumentSearchResult holds the summary and ranked documents for a query
type DocumentSearchResult struct {
	Summary   string           `json:"summary,omitempty"`
	Documents []DocumentResult `json:"documents"`
	TotalSize int64            `json:"total_size"`
}

// ResearchRequest is one deep research turn. An empty Session starts a new conversation.
type ResearchRequest struct {
	Query     string `json:"query"`
	Session   string `json:"session,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ResearchResult holds the assistant replies of a deep research turn in stream order
type ResearchResult struct {
	Replies        []string `json:"replies"`
	Session        string   `json:"session,omitempty"`
	State          string   `json:"state,omitempty"`
	SkippedReasons []string `json:"skipped_reasons,omitempty"`
}
