package docstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperfold/paperfold/internal/models"
)

// Pagination bounds for List.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store records metadata about generated documents. The PDF bytes are
// returned to the caller, not retained here.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Record inserts one document metadata row and fills in its ID and
// creation time.
func (s *Store) Record(ctx context.Context, doc *models.Document) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO documents (owner_id, identity_id, filename, file_size, format, source_kind, page_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, doc.OwnerID, doc.IdentityID, doc.Filename, doc.FileSize, doc.Format,
		doc.SourceKind, doc.PageCount).Scan(&doc.ID, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record document: %w", err)
	}
	return nil
}

// List returns an owner's documents, newest first. Page and limit are
// clamped to sane bounds rather than rejected.
func (s *Store) List(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]models.Document, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var total int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM documents WHERE owner_id = $1
	`, ownerID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	offset := (page - 1) * limit
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, identity_id, filename, file_size, format, source_kind, page_count, created_at
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(
			&doc.ID, &doc.OwnerID, &doc.IdentityID, &doc.Filename, &doc.FileSize,
			&doc.Format, &doc.SourceKind, &doc.PageCount, &doc.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating document rows: %w", err)
	}

	return docs, total, nil
}
