package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"homebase/internal/chunker"
	"homebase/internal/extract"
	"homebase/internal/llm"
	"homebase/internal/models"
	"homebase/internal/repositories"
)

// MaxUploadSize bounds a single document upload.
const MaxUploadSize = 10 << 20 // 10 MB

var allowedMimeTypes = map[string]bool{
	"application/pdf":  true,
	"application/json": true,
	"text/plain":       true,
	"text/markdown":    true,
	"text/csv":         true,
	"text/html":        true,
	"image/jpeg":       true,
	"image/png":        true,
	"image/webp":       true,
	"image/heic":       true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// DocumentService runs the ingestion pipeline: validate, persist, store
// bytes, extract, chunk, embed. The document status advances per step and
// halts on the first failure.
type DocumentService struct {
	Repo      repositories.DocumentRepository
	Extractor extract.Extractor
	Embedder  llm.EmbeddingClient
	Chunker   chunker.Chunker
	FilesRoot string

	// Optional: when both are set, the uploader is mailed once their
	// document reaches ready.
	Party  repositories.PartyRepository
	Notify interface {
		DocumentReady(email, displayName string, doc *models.Document) error
	}
}

func NewDocumentService(
	repo repositories.DocumentRepository,
	extractor extract.Extractor,
	embedder llm.EmbeddingClient,
	ch chunker.Chunker,
	filesRoot string,
) *DocumentService {
	return &DocumentService{
		Repo:      repo,
		Extractor: extractor,
		Embedder:  embedder,
		Chunker:   ch,
		FilesRoot: filepath.Clean(filesRoot),
	}
}

// Ingest runs the full file pipeline and returns the document in its
// terminal state. Validation failures are rejected before any persistence.
func (s *DocumentService) Ingest(ctx context.Context, partyID, uploaderID int64, title string, category models.DocumentCategory, data []byte, mimeType string) (*models.Document, error) {
	mimeType = normalizeMime(mimeType)
	if err := validateUpload(title, category, int64(len(data)), mimeType); err != nil {
		return nil, err
	}

	doc := &models.Document{
		PartyID:    partyID,
		UploaderID: uploaderID,
		Title:      strings.TrimSpace(title),
		Category:   category,
		Status:     models.DocStatusUploading,
		FileType:   mimeType,
		FileSize:   int64(len(data)),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	relPath, err := s.storeBytes(doc, data)
	if err != nil {
		// The row stays visible in a failed state; no chunk work has begun.
		log.Printf("[docs][ingest][err] store bytes doc=%d: %v", doc.ID, err)
		s.markError(ctx, doc)
		return doc, fmt.Errorf("%w: store bytes: %v", ErrPipeline, err)
	}
	doc.FilePath = &relPath
	if err := s.Repo.SetFilePath(ctx, doc.ID, relPath); err != nil {
		s.markError(ctx, doc)
		return doc, fmt.Errorf("%w: record file path: %v", ErrPipeline, err)
	}
	if err := s.advance(ctx, doc, models.DocStatusProcessing); err != nil {
		return doc, err
	}

	res, err := s.Extractor.ExtractText(ctx, data, mimeType)
	if err != nil {
		log.Printf("[docs][ingest][err] extract doc=%d: %v", doc.ID, err)
		s.markError(ctx, doc)
		return doc, fmt.Errorf("%w: extract: %v", ErrPipeline, err)
	}
	return s.finishIngestion(ctx, doc, res.Text, res.Metadata)
}

// IngestText is the non-file variant: no raw bytes, no extraction; the
// pipeline starts directly from chunking.
func (s *DocumentService) IngestText(ctx context.Context, partyID, uploaderID int64, title string, category models.DocumentCategory, text string) (*models.Document, error) {
	if err := validateUpload(title, category, int64(len(text)), "text/plain"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}

	doc := &models.Document{
		PartyID:    partyID,
		UploaderID: uploaderID,
		Title:      strings.TrimSpace(title),
		Category:   category,
		Status:     models.DocStatusProcessing,
		FileType:   "text/plain",
		FileSize:   int64(len(text)),
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return s.finishIngestion(ctx, doc, text, map[string]string{"source": "text"})
}

// finishIngestion chunks, embeds and persists. Zero extractable text is a
// valid terminal state, not an error.
func (s *DocumentService) finishIngestion(ctx context.Context, doc *models.Document, text string, metadata map[string]string) (*models.Document, error) {
	var textPtr *string
	if strings.TrimSpace(text) != "" {
		t := text
		textPtr = &t
	}
	if err := s.Repo.SetContent(ctx, doc.ID, textPtr, metadata); err != nil {
		s.markError(ctx, doc)
		return doc, fmt.Errorf("%w: set content: %v", ErrPipeline, err)
	}
	doc.TextContent = textPtr
	doc.Metadata = metadata

	if textPtr == nil {
		// e.g. an image: ready with zero chunks
		if err := s.advance(ctx, doc, models.DocStatusReady); err != nil {
			return doc, err
		}
		log.Printf("[docs][ingest][ok] doc=%d ready without text", doc.ID)
		s.notifyUploader(ctx, doc)
		return doc, nil
	}

	chunks := s.Chunker.Split(text)
	if len(chunks) > 0 {
		contents := make([]string, len(chunks))
		for i, c := range chunks {
			contents[i] = c.Content
		}
		vectors, err := s.Embedder.Embed(ctx, contents)
		if err != nil {
			log.Printf("[docs][ingest][err] embed doc=%d: %v", doc.ID, err)
			s.markError(ctx, doc)
			return doc, fmt.Errorf("%w: embed: %v", ErrPipeline, err)
		}
		rows := make([]models.DocumentChunk, len(chunks))
		for i, c := range chunks {
			rows[i] = models.DocumentChunk{
				DocumentID: doc.ID,
				ChunkIndex: c.Index,
				Content:    c.Content,
				Embedding:  vectors[i],
				TokenCount: c.TokenCount,
			}
		}
		// full replacement: a re-ingestion never appends to a prior set
		if err := s.Repo.ReplaceChunks(ctx, doc.ID, rows); err != nil {
			log.Printf("[docs][ingest][err] persist chunks doc=%d: %v", doc.ID, err)
			s.markError(ctx, doc)
			return doc, fmt.Errorf("%w: persist chunks: %v", ErrPipeline, err)
		}
	}

	if err := s.advance(ctx, doc, models.DocStatusReady); err != nil {
		return doc, err
	}
	log.Printf("[docs][ingest][ok] doc=%d chunks=%d", doc.ID, len(chunks))
	s.notifyUploader(ctx, doc)
	return doc, nil
}

func (s *DocumentService) notifyUploader(ctx context.Context, doc *models.Document) {
	if s.Notify == nil || s.Party == nil {
		return
	}
	user, err := s.Party.GetUser(ctx, doc.UploaderID)
	if err != nil || user == nil {
		log.Printf("[docs][notify][warn] uploader %d lookup failed: %v", doc.UploaderID, err)
		return
	}
	if err := s.Notify.DocumentReady(user.Email, user.DisplayName, doc); err != nil {
		log.Printf("[docs][notify][warn] send to %s: %v", user.Email, err)
	}
}

func (s *DocumentService) GetByID(ctx context.Context, partyID, id int64) (*models.Document, error) {
	doc, err := s.Repo.GetByID(ctx, partyID, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %d", ErrNotFound, id)
	}
	return doc, nil
}

func (s *DocumentService) List(ctx context.Context, partyID int64, filter models.DocumentFilter) ([]models.Document, error) {
	return s.Repo.List(ctx, partyID, filter)
}

func (s *DocumentService) Delete(ctx context.Context, partyID, id int64) error {
	doc, err := s.GetByID(ctx, partyID, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, partyID, id); err != nil {
		return err
	}
	if doc.FilePath != nil {
		// best effort; the row and chunks are already gone
		if err := os.Remove(filepath.Join(s.FilesRoot, *doc.FilePath)); err != nil && !os.IsNotExist(err) {
			log.Printf("[docs][delete][warn] remove file doc=%d: %v", id, err)
		}
	}
	return nil
}

// FilePath returns the absolute path of the stored raw file for download.
func (s *DocumentService) FilePath(ctx context.Context, partyID, id int64) (string, *models.Document, error) {
	doc, err := s.GetByID(ctx, partyID, id)
	if err != nil {
		return "", nil, err
	}
	if doc.FilePath == nil {
		return "", nil, fmt.Errorf("%w: document %d has no stored file", ErrNotFound, id)
	}
	return filepath.Join(s.FilesRoot, *doc.FilePath), doc, nil
}

func (s *DocumentService) storeBytes(doc *models.Document, data []byte) (string, error) {
	dir := filepath.Join(s.FilesRoot, fmt.Sprintf("party_%d", doc.PartyID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + extensionFor(doc.FileType)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join(fmt.Sprintf("party_%d", doc.PartyID), name), nil
}

func (s *DocumentService) advance(ctx context.Context, doc *models.Document, status models.DocumentStatus) error {
	if err := s.Repo.UpdateStatus(ctx, doc.ID, status); err != nil {
		doc.Status = models.DocStatusError
		return fmt.Errorf("%w: advance to %s: %v", ErrPipeline, status, err)
	}
	doc.Status = status
	return nil
}

func (s *DocumentService) markError(ctx context.Context, doc *models.Document) {
	if err := s.Repo.UpdateStatus(ctx, doc.ID, models.DocStatusError); err != nil {
		log.Printf("[docs][ingest][err] mark error doc=%d: %v", doc.ID, err)
	}
	doc.Status = models.DocStatusError
}

func validateUpload(title string, category models.DocumentCategory, size int64, mimeType string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !models.IsValidDocCategory(category) {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, category)
	}
	if size == 0 {
		return fmt.Errorf("%w: empty upload", ErrValidation)
	}
	if size > MaxUploadSize {
		return fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, MaxUploadSize)
	}
	if !allowedMimeTypes[mimeType] {
		return fmt.Errorf("%w: unsupported file type %q", ErrValidation, mimeType)
	}
	return nil
}

func normalizeMime(mt string) string {
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "text/markdown":
		return ".md"
	case "text/csv":
		return ".csv"
	case "text/html":
		return ".html"
	case "application/json":
		return ".json"
	default:
		return ".bin"
	}
}
