package domain

import "time"

// EmbeddingRecord is one embedded chunk of wiki page content.
// All records for a page are replaced wholesale when the page is re-indexed.
type EmbeddingRecord struct {
	TenantID     string
	PageTitle    string
	SectionID    string // optional, empty when the chunk covers the whole page
	Namespace    int
	Text         string // optional chunk text retained for snippets
	LastModified *time.Time
}

// ValidateEmbeddingRecord validates an EmbeddingRecord instance
func ValidateEmbeddingRecord(r *EmbeddingRecord) error {
	if r == nil {
		return NewDomainError(ErrCodeValidation, "embedding record cannot be nil")
	}
	if r.PageTitle == "" {
		return NewDomainError(ErrCodeValidation, "embedding record PageTitle is required")
	}
	if r.Namespace < 0 {
		return ErrInvalidNamespace
	}
	return nil
}

// SearchCandidate is a raw similarity hit from a vector store, before
// permission filtering. Not persisted.
type SearchCandidate struct {
	Record EmbeddingRecord
	Score  float32
}

// SearchResult is one access-checked result returned to callers.
type SearchResult struct {
	Title     string  `json:"title"`
	SectionID string  `json:"section_id,omitempty"`
	Score     float32 `json:"score"`
	Snippet   string  `json:"snippet,omitempty"`
}

// IndexStats summarizes one tenant's vector store.
type IndexStats struct {
	TotalVectors   int                  `json:"total_vectors"`
	TotalPages     int                  `json:"total_pages"`
	Pages          []string             `json:"embedded_pages"`
	PageTimestamps map[string]time.Time `json:"page_timestamps,omitempty"`
}
