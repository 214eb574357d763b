package sqlite

import (
	"bytes"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/version"
)

// StoredDocument is a persisted design document with its bookkeeping.
type StoredDocument struct {
	DocumentID string          `json:"document_id"`
	Name       string          `json:"name"`
	Revision   int             `json:"revision"`
	Document   design.Document `json:"document"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// DocumentStore persists design documents.
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a DocumentStore.
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save inserts a new document, or replaces an existing one and bumps its
// revision. An empty DocumentID is assigned a UUID.
func (s *DocumentStore) Save(d *StoredDocument) error {
	var body bytes.Buffer
	if err := design.Save(&body, d.Document); err != nil {
		return err
	}
	now := s.db.Clock.Now().UnixNano()
	if d.DocumentID == "" {
		d.DocumentID = uuid.New().String()
	}
	return s.db.retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var rev int
		var created int64
		err = tx.QueryRow(`SELECT revision, created_at FROM documents WHERE document_id = ?`, d.DocumentID).Scan(&rev, &created)
		switch {
		case err == sql.ErrNoRows:
			rev, created = 1, now
			_, err = tx.Exec(`
				INSERT INTO documents (document_id, name, revision, schema, body, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				d.DocumentID, d.Name, rev, version.DocumentSchema, body.String(), created, now)
		case err == nil:
			rev++
			_, err = tx.Exec(`
				UPDATE documents SET name = ?, revision = ?, schema = ?, body = ?, updated_at = ?
				WHERE document_id = ?`,
				d.Name, rev, version.DocumentSchema, body.String(), now, d.DocumentID)
		}
		if err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		d.Revision, d.CreatedAt, d.UpdatedAt = rev, created, now
		return nil
	})
}

// Get loads a document by id. The body goes through design.Load so schema
// checks and migrations apply.
func (s *DocumentStore) Get(id string) (*StoredDocument, error) {
	var d StoredDocument
	var body string
	err := s.db.QueryRow(`
		SELECT document_id, name, revision, body, created_at, updated_at
		FROM documents WHERE document_id = ?`, id).
		Scan(&d.DocumentID, &d.Name, &d.Revision, &body, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc, err := design.Load(bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	d.Document = doc
	return &d, nil
}

// DocumentSummary is one List row.
type DocumentSummary struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Revision   int    `json:"revision"`
	UpdatedAt  int64  `json:"updated_at"`
}

// List returns every document, most recently updated first.
func (s *DocumentStore) List() ([]DocumentSummary, error) {
	rows, err := s.db.Query(`SELECT document_id, name, revision, updated_at FROM documents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()
	var out []DocumentSummary
	for rows.Next() {
		var d DocumentSummary
		if err := rows.Scan(&d.DocumentID, &d.Name, &d.Revision, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes a document and its evaluation runs.
func (s *DocumentStore) Delete(id string) error {
	return s.db.retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM documents WHERE document_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete document: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("document %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
