package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"

	"homebase/internal/models"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, partyID, id int64) (*models.Document, error)
	List(ctx context.Context, partyID int64, filter models.DocumentFilter) ([]models.Document, error)
	UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus) error
	SetFilePath(ctx context.Context, id int64, path string) error
	SetContent(ctx context.Context, id int64, text *string, metadata map[string]string) error
	Delete(ctx context.Context, partyID, id int64) error

	// ReplaceChunks swaps the document's full chunk set in one transaction;
	// a re-ingestion never appends to a prior set.
	ReplaceChunks(ctx context.Context, documentID int64, chunks []models.DocumentChunk) error
	CountChunks(ctx context.Context, documentID int64) (int, error)
	SearchChunks(ctx context.Context, partyID int64, query []float32, topK int) ([]models.ChunkMatch, error)
}

type documentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	meta, err := json.Marshal(orEmpty(doc.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO documents (party_id, uploader_id, title, category, status, file_type, file_size, file_path, metadata)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		doc.PartyID, doc.UploaderID, doc.Title, doc.Category, doc.Status,
		doc.FileType, doc.FileSize, doc.FilePath, string(meta),
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
}

func (r *documentRepository) GetByID(ctx context.Context, partyID, id int64) (*models.Document, error) {
	const q = `
		SELECT id, party_id, uploader_id, title, category, status, file_type, file_size, file_path, text_content, metadata, created_at, updated_at
		FROM documents WHERE id=$1 AND party_id=$2`
	return scanDocument(r.db.QueryRowContext(ctx, q, id, partyID))
}

func (r *documentRepository) List(ctx context.Context, partyID int64, filter models.DocumentFilter) ([]models.Document, error) {
	base := `
		SELECT id, party_id, uploader_id, title, category, status, file_type, file_size, file_path, text_content, metadata, created_at, updated_at
		FROM documents WHERE party_id=$1`
	args := []interface{}{partyID}
	argID := 2
	conditions := []string{}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argID))
		args = append(args, *filter.Category)
		argID++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}
	base += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, base, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *documentRepository) UpdateStatus(ctx context.Context, id int64, status models.DocumentStatus) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE documents SET status=$1, updated_at=NOW() WHERE id=$2`, status, id); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

func (r *documentRepository) SetFilePath(ctx context.Context, id int64, path string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE documents SET file_path=$1, updated_at=NOW() WHERE id=$2`, path, id); err != nil {
		return fmt.Errorf("set file path: %w", err)
	}
	return nil
}

func (r *documentRepository) SetContent(ctx context.Context, id int64, text *string, metadata map[string]string) error {
	meta, err := json.Marshal(orEmpty(metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if _, err := r.db.ExecContext(ctx,
		`UPDATE documents SET text_content=$1, metadata=$2, updated_at=NOW() WHERE id=$3`,
		text, string(meta), id); err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, partyID, id int64) error {
	// chunks go with the document via FK cascade
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM documents WHERE id=$1 AND party_id=$2`, id, partyID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (r *documentRepository) ReplaceChunks(ctx context.Context, documentID int64, chunks []models.DocumentChunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id=$1`, documentID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	const q = `
		INSERT INTO document_chunks (document_id, chunk_index, content, embedding, token_count)
		VALUES ($1,$2,$3,$4,$5)`
	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx, q,
			documentID, c.ChunkIndex, c.Content, pgvector.NewVector(c.Embedding), c.TokenCount); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

func (r *documentRepository) CountChunks(ctx context.Context, documentID int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_chunks WHERE document_id=$1`, documentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (r *documentRepository) SearchChunks(ctx context.Context, partyID int64, query []float32, topK int) ([]models.ChunkMatch, error) {
	// Cosine distance; embeddings are stored un-normalized so <=> must match
	// the ingestion embedding space.
	const q = `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.token_count, c.created_at,
		       d.title, d.category,
		       1 - (c.embedding <=> $2) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.party_id = $1 AND d.status = 'ready'
		ORDER BY c.embedding <=> $2
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, q, partyID, pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		if err := rows.Scan(
			&m.Chunk.ID, &m.Chunk.DocumentID, &m.Chunk.ChunkIndex, &m.Chunk.Content,
			&m.Chunk.TokenCount, &m.Chunk.CreatedAt,
			&m.DocumentTitle, &m.DocumentCategory, &m.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var d models.Document
	var meta []byte
	err := row.Scan(
		&d.ID, &d.PartyID, &d.UploaderID, &d.Title, &d.Category, &d.Status,
		&d.FileType, &d.FileSize, &d.FilePath, &d.TextContent, &meta,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &d, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
