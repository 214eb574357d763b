package sqlite

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/lens.design/internal/design"
	"github.com/banshee-data/lens.design/internal/requirements"
	"github.com/banshee-data/lens.design/internal/timeutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "lens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleDoc() design.Document {
	return design.Document{
		ActiveConfigID: "c1",
		Configurations: []design.Configuration{{
			ID:   "c1",
			Name: "Main",
			Blocks: []design.Block{
				{BlockID: "stop", BlockType: "Stop", Parameters: design.Params{"semiDiameter": 5.0}},
				{BlockID: "img", BlockType: "ImagePlane"},
			},
			Source: []design.SourceRow{{ID: 1, Wavelength: 0.5876, Weight: 1, Primary: true}},
		}},
	}
}

func TestMigrationsApplied(t *testing.T) {
	db := openTestDB(t)
	v, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)
	assert.False(t, dirty)

	// Reapplying is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestDocumentStore_SaveGetRevision(t *testing.T) {
	s := NewDocumentStore(openTestDB(t))

	d := &StoredDocument{Name: "singlet", Document: sampleDoc()}
	require.NoError(t, s.Save(d))
	assert.NotEmpty(t, d.DocumentID)
	assert.Equal(t, 1, d.Revision)

	got, err := s.Get(d.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "singlet", got.Name)
	assert.Equal(t, "c1", got.Document.ActiveConfigID)
	require.Len(t, got.Document.Configurations[0].Blocks, 2)

	d.Name = "renamed"
	require.NoError(t, s.Save(d))
	assert.Equal(t, 2, d.Revision)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "renamed", list[0].Name)
	assert.Equal(t, 2, list[0].Revision)

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestEvaluationRunStore(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentStore(db)
	runs := NewEvaluationRunStore(db)

	d := &StoredDocument{Name: "singlet", Document: sampleDoc()}
	require.NoError(t, docs.Save(d))

	ups := []requirements.Update{
		{ID: "efl", Current: 50.05, Status: requirements.StatusOK, Weight: 1},
		{ID: "spot", Current: 0.03, Status: requirements.StatusNG, Violation: 0.01, Contribution: 0.02, Weight: 2},
	}
	run := NewEvaluationRun(d.DocumentID, d.Revision, ups)
	require.NoError(t, runs.Insert(run))
	assert.NotEmpty(t, run.RunID)

	got, err := runs.Get(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, ups, got.Updates)
	assert.Equal(t, 1, got.Counts["OK"])
	assert.Equal(t, 1, got.Counts["NG"])
	assert.InDelta(t, 2*0.01*0.01, got.Merit, 1e-15)

	list, err := runs.ListByDocument(d.DocumentID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// Deleting the document cascades to its runs.
	require.NoError(t, docs.Delete(d.DocumentID))
	_, err = runs.Get(run.RunID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, runs.Delete("missing"), ErrNotFound)
	assert.ErrorIs(t, docs.Delete("missing"), ErrNotFound)
}

func TestDocumentStore_Timestamps(t *testing.T) {
	db := openTestDB(t)
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	db.Clock = clock
	s := NewDocumentStore(db)

	a := &StoredDocument{Name: "a", Document: sampleDoc()}
	require.NoError(t, s.Save(a))
	clock.Advance(time.Second)
	b := &StoredDocument{Name: "b", Document: sampleDoc()}
	require.NoError(t, s.Save(b))
	clock.Advance(time.Second)
	require.NoError(t, s.Save(a))

	assert.Equal(t, time.Unix(1000, 0).UnixNano(), a.CreatedAt)
	assert.Equal(t, time.Unix(1002, 0).UnixNano(), a.UpdatedAt)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "b", list[1].Name)
}

func TestRetryOnBusy(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	db := &DB{Clock: clock}
	calls := 0
	err := db.retryOnBusy(func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked (SQLITE_BUSY)")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, clock.Sleeps())

	calls = 0
	other := errors.New("constraint failed")
	assert.Equal(t, other, db.retryOnBusy(func() error { calls++; return other }))
	assert.Equal(t, 1, calls)
}
