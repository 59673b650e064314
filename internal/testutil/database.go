package testutil

import (
	"testing"

	"pfs-go/internal/config"
	"pfs-go/internal/database"
	"pfs-go/internal/pfs"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewDatabaseFromConfig(config.DatabaseConfig{Type: "memory"})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// DefaultMapping is the translation mapping used by test projects.
const DefaultMapping = "/<language_code>/<filename>.<ext>"

// CreateProject creates a memory-transport project with the default
// mapping.
func CreateProject(t *testing.T, db pfs.Database, code string) *pfs.Project {
	t.Helper()

	p, err := db.CreateProject(&pfs.Project{
		Code:               code,
		FSType:             "memory",
		FSURL:              "memory://" + code,
		TranslationMapping: DefaultMapping,
	})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

// CreateStore creates a document holding one unit per source string, with
// the target "<source>-translated".
func CreateStore(t *testing.T, db pfs.Database, projectID int64, pootlePath string, sources ...string) *pfs.Document {
	t.Helper()

	doc, err := db.CreateDocument(projectID, pootlePath)
	if err != nil {
		t.Fatalf("CreateDocument() error = %v", err)
	}
	changes := &pfs.UnitChanges{}
	for i, s := range sources {
		changes.Add = append(changes.Add, &pfs.Unit{
			UnitID: pfs.MakeUnitID("", s),
			Source: s,
			Target: s + "-translated",
			Index:  i,
		})
	}
	if len(changes.Add) > 0 {
		if doc.MaxUnitRevision, err = db.ApplyUnitChanges(doc.ID, changes); err != nil {
			t.Fatalf("ApplyUnitChanges() error = %v", err)
		}
	}
	return doc
}
