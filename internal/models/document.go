package models

import "time"

// DocumentStatus tracks the ingestion lifecycle of a document.
type DocumentStatus string

const (
	DocStatusUploading  DocumentStatus = "uploading"
	DocStatusProcessing DocumentStatus = "processing"
	DocStatusReady      DocumentStatus = "ready"
	DocStatusError      DocumentStatus = "error"
)

type DocumentCategory string

const (
	DocCategoryInsurance   DocumentCategory = "insurance"
	DocCategoryLegal       DocumentCategory = "legal"
	DocCategoryFinancial   DocumentCategory = "financial"
	DocCategoryManual      DocumentCategory = "manual"
	DocCategoryMaintenance DocumentCategory = "maintenance"
	DocCategoryOther       DocumentCategory = "other"
)

// Document is a shared file (or raw text) ingested into a party's knowledge base.
type Document struct {
	ID          int64             `json:"id"`
	PartyID     int64             `json:"party_id"`
	UploaderID  int64             `json:"uploader_id"`
	Title       string            `json:"title"`
	Category    DocumentCategory  `json:"category"`
	Status      DocumentStatus    `json:"status"`
	FileType    string            `json:"file_type"`
	FileSize    int64             `json:"file_size"`
	FilePath    *string           `json:"file_path,omitempty"`
	TextContent *string           `json:"-"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// DocumentChunk is the unit of retrieval. Chunk indices for a document are
// contiguous from 0; re-ingestion replaces the full set.
type DocumentChunk struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"-"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChunkMatch is one retrieval hit, annotated with its parent document for citation.
type ChunkMatch struct {
	Chunk            DocumentChunk    `json:"chunk"`
	DocumentTitle    string           `json:"document_title"`
	DocumentCategory DocumentCategory `json:"document_category"`
	Score            float64          `json:"score"`
}

type DocumentFilter struct {
	Category *DocumentCategory
	Status   *DocumentStatus
}

func IsValidDocCategory(c DocumentCategory) bool {
	switch c {
	case DocCategoryInsurance, DocCategoryLegal, DocCategoryFinancial,
		DocCategoryManual, DocCategoryMaintenance, DocCategoryOther:
		return true
	}
	return false
}
