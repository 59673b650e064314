package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pfs-go/internal/pfs"
)

const documentSelect = `SELECT d.id, d.project_id, d.pootle_path, d.obsolete, d.created_at,
	COALESCE((SELECT MAX(u.revision) FROM units u WHERE u.document_id = d.id), 0)
	FROM documents d`

const unitColumns = `id, unitid, context, source, target, comment, idx, revision, obsolete`

// nextRevision advances the global unit revision counter inside tx.
func nextRevision(tx querier) (int64, error) {
	var rev int64
	err := tx.QueryRow("UPDATE revisions SET value = value + 1 WHERE name = 'units' RETURNING value").Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("advancing revision: %w", err)
	}
	return rev, nil
}

func (s *SQLiteDatabase) CurrentRevision() (int64, error) {
	var rev int64
	if err := s.db.QueryRow("SELECT value FROM revisions WHERE name = 'units'").Scan(&rev); err != nil {
		return 0, fmt.Errorf("reading revision: %w", err)
	}
	return rev, nil
}

func (s *SQLiteDatabase) FindDocuments(projectID int64) ([]*pfs.Document, error) {
	rows, err := s.db.Query(documentSelect+" WHERE d.project_id = ? ORDER BY d.pootle_path", projectID)
	if err != nil {
		return nil, fmt.Errorf("finding documents: %w", err)
	}
	defer rows.Close()

	var docs []*pfs.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("finding documents: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding documents: %w", err)
	}
	return docs, nil
}

func (s *SQLiteDatabase) FindDocumentByID(id int64) (*pfs.Document, error) {
	return findDocument(s.db, "d.id = ?", id)
}

func (s *SQLiteDatabase) FindDocumentByPootlePath(pootlePath string) (*pfs.Document, error) {
	return findDocument(s.db, "d.pootle_path = ?", pootlePath)
}

func findDocument(q querier, where string, arg any) (*pfs.Document, error) {
	d, err := scanDocument(q.QueryRow(documentSelect+" WHERE "+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding document: %w", err)
	}
	return d, nil
}

func (s *SQLiteDatabase) CreateDocument(projectID int64, pootlePath string) (*pfs.Document, error) {
	lang := pfs.LanguageFromPootlePath(pootlePath)
	if lang == "" {
		return nil, fmt.Errorf("invalid pootle path %q", pootlePath)
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO translation_projects (project_id, language_code) VALUES (?, ?)
		ON CONFLICT (project_id, language_code) DO NOTHING`, projectID, lang)
	if err != nil {
		return nil, fmt.Errorf("creating translation project: %w", err)
	}
	var tpID int64
	err = tx.QueryRow("SELECT id FROM translation_projects WHERE project_id = ? AND language_code = ?",
		projectID, lang).Scan(&tpID)
	if err != nil {
		return nil, fmt.Errorf("finding translation project: %w", err)
	}

	existing, err := findDocument(tx, "d.pootle_path = ?", pootlePath)
	if err != nil {
		return nil, err
	}
	var id int64
	if existing != nil {
		if existing.ProjectID != projectID {
			return nil, fmt.Errorf("document %s belongs to another project", pootlePath)
		}
		id = existing.ID
		if _, err := tx.Exec("UPDATE documents SET obsolete = 0 WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("resurrecting document: %w", err)
		}
	} else {
		res, err := tx.Exec(`INSERT INTO documents (project_id, translation_project_id, pootle_path, created_at)
			VALUES (?, ?, ?, ?)`, projectID, tpID, pootlePath, time.Now().UTC())
		if err != nil {
			return nil, fmt.Errorf("creating document: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return nil, fmt.Errorf("creating document: %w", err)
		}
	}

	doc, err := findDocument(tx, "d.id = ?", id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteDatabase) ObsoleteDocument(id int64) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE documents SET obsolete = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("obsoleting document: %w", err)
	}
	var live int
	if err := tx.QueryRow("SELECT COUNT(*) FROM units WHERE document_id = ? AND obsolete = 0", id).Scan(&live); err != nil {
		return fmt.Errorf("counting units: %w", err)
	}
	if live > 0 {
		rev, err := nextRevision(tx)
		if err != nil {
			return err
		}
		_, err = tx.Exec("UPDATE units SET obsolete = 1, revision = ? WHERE document_id = ? AND obsolete = 0", rev, id)
		if err != nil {
			return fmt.Errorf("obsoleting units: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing obsolete document: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindUnits(documentID int64) ([]*pfs.Unit, error) {
	rows, err := s.db.Query("SELECT "+unitColumns+" FROM units WHERE document_id = ? ORDER BY idx, id", documentID)
	if err != nil {
		return nil, fmt.Errorf("finding units: %w", err)
	}
	defer rows.Close()

	var units []*pfs.Unit
	for rows.Next() {
		var u pfs.Unit
		var obsolete int
		if err := rows.Scan(&u.ID, &u.UnitID, &u.Context, &u.Source, &u.Target, &u.Comment,
			&u.Index, &u.Revision, &obsolete); err != nil {
			return nil, fmt.Errorf("finding units: %w", err)
		}
		u.Obsolete = obsolete != 0
		units = append(units, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding units: %w", err)
	}
	return units, nil
}

func (s *SQLiteDatabase) ApplyUnitChanges(documentID int64, changes *pfs.UnitChanges) (int64, error) {
	if changes == nil || changes.Empty() {
		return maxUnitRevision(s.db, documentID)
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	rev, err := nextRevision(tx)
	if err != nil {
		return 0, err
	}
	for _, u := range changes.Obsolete {
		_, err := tx.Exec("UPDATE units SET obsolete = 1, revision = ? WHERE id = ? AND document_id = ?",
			rev, u, documentID)
		if err != nil {
			return 0, fmt.Errorf("obsoleting unit %d: %w", u, err)
		}
	}
	for _, u := range changes.Update {
		_, err := tx.Exec(`UPDATE units SET source = ?, target = ?, comment = ?, idx = ?, obsolete = ?, revision = ?
			WHERE id = ? AND document_id = ?`,
			u.Source, u.Target, u.Comment, u.Index, boolToInt(u.Obsolete), rev, u.ID, documentID)
		if err != nil {
			return 0, fmt.Errorf("updating unit %d: %w", u.ID, err)
		}
	}
	for _, u := range changes.Add {
		unitID := u.UnitID
		if unitID == "" {
			unitID = pfs.MakeUnitID(u.Context, u.Source)
		}
		_, err := tx.Exec(`INSERT INTO units (document_id, unitid, context, source, target, comment, idx, revision, obsolete)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			documentID, unitID, u.Context, u.Source, u.Target, u.Comment, u.Index, rev, boolToInt(u.Obsolete))
		if err != nil {
			return 0, fmt.Errorf("adding unit %q: %w", unitID, err)
		}
	}

	maxRev, err := maxUnitRevision(tx, documentID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing unit changes: %w", err)
	}
	return maxRev, nil
}

func (s *SQLiteDatabase) SetUnitTarget(unitID int64, target string) (int64, error) {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	var documentID int64
	if err := tx.QueryRow("SELECT document_id FROM units WHERE id = ?", unitID).Scan(&documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("unit %d not found", unitID)
		}
		return 0, fmt.Errorf("finding unit: %w", err)
	}
	rev, err := nextRevision(tx)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec("UPDATE units SET target = ?, revision = ? WHERE id = ?", target, rev, unitID); err != nil {
		return 0, fmt.Errorf("updating unit target: %w", err)
	}
	maxRev, err := maxUnitRevision(tx, documentID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing unit target: %w", err)
	}
	return maxRev, nil
}

func maxUnitRevision(q querier, documentID int64) (int64, error) {
	var rev int64
	err := q.QueryRow("SELECT COALESCE(MAX(revision), 0) FROM units WHERE document_id = ?", documentID).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("reading max unit revision: %w", err)
	}
	return rev, nil
}

func scanDocument(row scanner) (*pfs.Document, error) {
	var d pfs.Document
	var obsolete int
	if err := row.Scan(&d.ID, &d.ProjectID, &d.PootlePath, &obsolete, &d.CreatedAt, &d.MaxUnitRevision); err != nil {
		return nil, err
	}
	d.Obsolete = obsolete != 0
	return &d, nil
}
