package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/lens.design/internal/requirements"
)

// EvaluationRun is one persisted requirements evaluation.
type EvaluationRun struct {
	RunID      string                `json:"run_id"`
	DocumentID string                `json:"document_id,omitempty"`
	Revision   int                   `json:"revision"`
	Merit      float64               `json:"merit"`
	Total      float64               `json:"total"`
	Counts     map[string]int        `json:"counts"`
	Updates    []requirements.Update `json:"updates"`
	EngineJSON json.RawMessage       `json:"engine_json,omitempty"`
	CreatedAt  int64                 `json:"created_at"`
}

// NewEvaluationRun summarises updates into a run record.
func NewEvaluationRun(documentID string, revision int, updates []requirements.Update) *EvaluationRun {
	counts := make(map[string]int)
	for st, n := range requirements.Summary(updates) {
		counts[string(st)] = n
	}
	return &EvaluationRun{
		DocumentID: documentID,
		Revision:   revision,
		Merit:      requirements.Merit(updates),
		Total:      requirements.Total(updates),
		Counts:     counts,
		Updates:    updates,
	}
}

// EvaluationRunStore persists evaluation runs.
type EvaluationRunStore struct {
	db *DB
}

// NewEvaluationRunStore creates an EvaluationRunStore.
func NewEvaluationRunStore(db *DB) *EvaluationRunStore {
	return &EvaluationRunStore{db: db}
}

// Insert persists run. If RunID is empty, a UUID is generated.
func (s *EvaluationRunStore) Insert(run *EvaluationRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.db.Clock.Now().UnixNano()
	}
	updates, err := json.Marshal(run.Updates)
	if err != nil {
		return fmt.Errorf("encode updates: %w", err)
	}
	var doc, engine interface{}
	if run.DocumentID != "" {
		doc = run.DocumentID
	}
	if len(run.EngineJSON) > 0 {
		engine = string(run.EngineJSON)
	}
	return s.db.retryOnBusy(func() error {
		_, err := s.db.Exec(`
			INSERT INTO evaluation_runs (
				run_id, document_id, revision, merit, total,
				ok_count, ng_count, fail_count, off_count,
				updates_json, engine_json, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.RunID, doc, run.Revision, run.Merit, run.Total,
			run.Counts[string(requirements.StatusOK)], run.Counts[string(requirements.StatusNG)],
			run.Counts[string(requirements.StatusFail)], run.Counts[string(requirements.StatusOff)],
			string(updates), engine, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert evaluation run: %w", err)
		}
		return nil
	})
}

const runColumns = `run_id, document_id, revision, merit, total,
	ok_count, ng_count, fail_count, off_count, updates_json, engine_json, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*EvaluationRun, error) {
	var r EvaluationRun
	var doc, engine sql.NullString
	var updates string
	var ok, ng, fail, off int
	if err := row.Scan(&r.RunID, &doc, &r.Revision, &r.Merit, &r.Total, &ok, &ng, &fail, &off, &updates, &engine, &r.CreatedAt); err != nil {
		return nil, err
	}
	r.DocumentID = doc.String
	if engine.Valid {
		r.EngineJSON = json.RawMessage(engine.String)
	}
	r.Counts = map[string]int{
		string(requirements.StatusOK):   ok,
		string(requirements.StatusNG):   ng,
		string(requirements.StatusFail): fail,
		string(requirements.StatusOff):  off,
	}
	if err := json.Unmarshal([]byte(updates), &r.Updates); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	return &r, nil
}

// Get returns a run by id.
func (s *EvaluationRunStore) Get(runID string) (*EvaluationRun, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM evaluation_runs WHERE run_id = ?`, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("evaluation run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan evaluation run: %w", err)
	}
	return r, nil
}

// ListByDocument returns a document's runs, newest first.
func (s *EvaluationRunStore) ListByDocument(documentID string) ([]*EvaluationRun, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM evaluation_runs WHERE document_id = ? ORDER BY created_at DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query evaluation runs: %w", err)
	}
	defer rows.Close()
	var out []*EvaluationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation run row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a run.
func (s *EvaluationRunStore) Delete(runID string) error {
	return s.db.retryOnBusy(func() error {
		res, err := s.db.Exec(`DELETE FROM evaluation_runs WHERE run_id = ?`, runID)
		if err != nil {
			return fmt.Errorf("delete evaluation run: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("evaluation run %s: %w", runID, ErrNotFound)
		}
		return nil
	})
}
