package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pfs-go/internal/pfs"
)

const projectColumns = `id, code, fs_type, fs_url, translation_mapping,
	excluded_languages, lang_mapping, created_at`

func (s *SQLiteDatabase) CreateProject(p *pfs.Project) (*pfs.Project, error) {
	excluded := p.ExcludedLanguages
	if excluded == nil {
		excluded = []string{}
	}
	excludedJSON, err := json.Marshal(excluded)
	if err != nil {
		return nil, fmt.Errorf("encoding excluded languages: %w", err)
	}
	langMapping := p.LangMapping
	if langMapping == nil {
		langMapping = map[string]string{}
	}
	langJSON, err := json.Marshal(langMapping)
	if err != nil {
		return nil, fmt.Errorf("encoding lang mapping: %w", err)
	}

	created := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO projects
		(code, fs_type, fs_url, translation_mapping, excluded_languages, lang_mapping, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Code, p.FSType, p.FSURL, p.TranslationMapping, string(excludedJSON), string(langJSON), created)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	out := *p
	out.ID = id
	out.ExcludedLanguages = excluded
	out.LangMapping = langMapping
	out.CreatedAt = created
	return &out, nil
}

func (s *SQLiteDatabase) FindProjectByCode(code string) (*pfs.Project, error) {
	row := s.db.QueryRow("SELECT "+projectColumns+" FROM projects WHERE code = ?", code)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding project by code: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) ListProjects() ([]*pfs.Project, error) {
	rows, err := s.db.Query("SELECT " + projectColumns + " FROM projects ORDER BY code")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var projects []*pfs.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("listing projects: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return projects, nil
}

func (s *SQLiteDatabase) SyncRevision(projectID int64) (int64, error) {
	var rev int64
	err := s.db.QueryRow("SELECT sync_revision FROM projects WHERE id = ?", projectID).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("reading sync revision: %w", err)
	}
	return rev, nil
}

func (s *SQLiteDatabase) BumpSyncRevision(projectID int64) (int64, error) {
	var rev int64
	err := s.db.QueryRow(
		"UPDATE projects SET sync_revision = sync_revision + 1 WHERE id = ? RETURNING sync_revision",
		projectID).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("bumping sync revision: %w", err)
	}
	return rev, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*pfs.Project, error) {
	var p pfs.Project
	var excluded, langMapping string
	err := row.Scan(&p.ID, &p.Code, &p.FSType, &p.FSURL, &p.TranslationMapping,
		&excluded, &langMapping, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(excluded), &p.ExcludedLanguages); err != nil {
		return nil, fmt.Errorf("decoding excluded languages: %w", err)
	}
	if err := json.Unmarshal([]byte(langMapping), &p.LangMapping); err != nil {
		return nil, fmt.Errorf("decoding lang mapping: %w", err)
	}
	return &p, nil
}
