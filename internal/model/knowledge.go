package model

// Document is a top-level knowledge entry, one row per ingested source file.
type Document struct {
	ID         string                 `json:"id"`
	AgentID    string                 `json:"agent_id"`
	Source     string                 `json:"source"`
	Kind       string                 `json:"kind"`
	Text       string                 `json:"text"`
	Checksum   string                 `json:"checksum"`
	Metadata   map[string]interface{} `json:"metadata"`
	IsMain     bool                   `json:"is_main"`
	DocumentID string                 `json:"document_id"`
	Ctime      int64                  `json:"ctime"`
}

// Fragment is one chunk of a document's text, the unit of similarity search.
type Fragment struct {
	ID         string                 `json:"id"`
	AgentID    string                 `json:"agent_id"`
	DocumentID string                 `json:"document_id"`
	Text       string                 `json:"text"`
	Position   int                    `json:"position"`
	Embedding  []float32              `json:"embedding"`
	Metadata   map[string]interface{} `json:"metadata"`
	Ctime      int64                  `json:"ctime"`
}

// SearchResult is a fragment ranked by cosine similarity to a query.
type SearchResult struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata"`
	Similarity float64                `json:"similarity"`
	Ctime      int64                  `json:"ctime"`
}
