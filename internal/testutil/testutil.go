// Package testutil provides shared test helpers for setting up stores and seeded graphs.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/aldercy/wyrd/internal/models"
	"github.com/aldercy/wyrd/internal/registry"
	"github.com/aldercy/wyrd/internal/storage"
)

// TestSQLite creates a temporary SQLite store that is automatically cleaned up.
func TestSQLite(t *testing.T) *storage.SQLite {
	t.Helper()
	dbFile, err := os.CreateTemp("", "wyrd-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := storage.OpenSQLite(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestFileStore creates a file-backed store inside a temp directory.
func TestFileStore(t *testing.T) *storage.File {
	t.Helper()
	store, err := storage.NewFile(t.TempDir() + "/graph.json")
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// Note builds a note with the given title and upserts it into reg.
func Note(t *testing.T, reg *registry.Registry, title string) models.Object {
	t.Helper()
	stored, err := reg.Upsert(models.NewNote(title, title+" gist"))
	if err != nil {
		t.Fatalf("upsert note %q: %v", title, err)
	}
	return stored
}

// NoteAt builds a note that already existed at createdAt, for tests that
// resolve the graph at past instants.
func NoteAt(t *testing.T, reg *registry.Registry, title string, createdAt time.Time) models.Object {
	t.Helper()
	obj := models.NewNote(title, title+" gist")
	obj.CreatedAt = createdAt
	stored, err := reg.Upsert(obj)
	if err != nil {
		t.Fatalf("upsert note %q: %v", title, err)
	}
	return stored
}

// Link builds a link between two objects and upserts it into reg.
func Link(t *testing.T, reg *registry.Registry, sourceID, targetID, verb string, kind models.LinkKind) models.Object {
	t.Helper()
	stored, err := reg.Upsert(models.NewLink(sourceID, targetID, verb, "", kind))
	if err != nil {
		t.Fatalf("upsert link %s->%s: %v", sourceID, targetID, err)
	}
	return stored
}

// Contains builds a hierarchical "contains" link from parent to child.
func Contains(t *testing.T, reg *registry.Registry, parentID, childID string) models.Object {
	t.Helper()
	stored, err := reg.Upsert(models.NewLink(parentID, childID, "contains", "is part of", models.LinkHierarchical))
	if err != nil {
		t.Fatalf("upsert contains %s->%s: %v", parentID, childID, err)
	}
	return stored
}

// Snapshot builds a snapshot of parentID effective over [from, until) and
// upserts it into reg. A zero until means the snapshot never expires.
func Snapshot(t *testing.T, reg *registry.Registry, parentID string, from, until time.Time, era, title string) models.Object {
	t.Helper()
	var untilPtr *time.Time
	if !until.IsZero() {
		untilPtr = &until
	}
	snap := models.NewSnapshot(parentID, from, untilPtr, era)
	snap.Title = title
	snap.Gist = title + " gist"
	stored, err := reg.Upsert(snap)
	if err != nil {
		t.Fatalf("upsert snapshot of %s: %v", parentID, err)
	}
	return stored
}

// Day returns midnight UTC of the given date, keeping test tables short.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
