package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pfs-go/internal/pfs"
)

const trackingColumns = `id, project_id, pootle_path, path, store_id, last_sync_revision,
	last_sync_hash, staged_for_removal, staged_for_merge, resolve_conflict`

func (s *SQLiteDatabase) FindTrackingRecords(projectID int64) ([]*pfs.TrackingRecord, error) {
	rows, err := s.db.Query("SELECT "+trackingColumns+" FROM store_fs WHERE project_id = ? ORDER BY pootle_path", projectID)
	if err != nil {
		return nil, fmt.Errorf("finding tracking records: %w", err)
	}
	defer rows.Close()

	var records []*pfs.TrackingRecord
	for rows.Next() {
		r, err := scanTrackingRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("finding tracking records: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding tracking records: %w", err)
	}
	return records, nil
}

func (s *SQLiteDatabase) FindTrackingRecordByPootlePath(projectID int64, pootlePath string) (*pfs.TrackingRecord, error) {
	row := s.db.QueryRow("SELECT "+trackingColumns+" FROM store_fs WHERE project_id = ? AND pootle_path = ?",
		projectID, pootlePath)
	r, err := scanTrackingRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding tracking record: %w", err)
	}
	return r, nil
}

func (s *SQLiteDatabase) CreateTrackingRecords(records []*pfs.TrackingRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		res, err := tx.Exec(`INSERT INTO store_fs
			(project_id, pootle_path, path, store_id, last_sync_revision, last_sync_hash,
			 staged_for_removal, staged_for_merge, resolve_conflict)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ProjectID, r.PootlePath, r.Path, nullInt64(r.StoreID), nullInt64(r.LastSyncRevision),
			nullString(r.LastSyncHash), boolToInt(r.StagedForRemoval), boolToInt(r.StagedForMerge),
			int(r.ResolveConflict))
		if err != nil {
			return fmt.Errorf("creating tracking record %s: %w", r.PootlePath, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("creating tracking record %s: %w", r.PootlePath, err)
		}
		r.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tracking records: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateTrackingRecords(ids []int64, u pfs.TrackingUpdate) error {
	if len(ids) == 0 {
		return nil
	}
	var sets []string
	var args []any
	if u.ResolveConflict != nil {
		sets = append(sets, "resolve_conflict = ?")
		args = append(args, int(*u.ResolveConflict))
	}
	if u.StagedForMerge != nil {
		sets = append(sets, "staged_for_merge = ?")
		args = append(args, boolToInt(*u.StagedForMerge))
	}
	if u.StagedForRemoval != nil {
		sets = append(sets, "staged_for_removal = ?")
		args = append(args, boolToInt(*u.StagedForRemoval))
	}
	if len(sets) == 0 {
		return nil
	}

	in, idArgs := inClause(ids)
	query := "UPDATE store_fs SET " + strings.Join(sets, ", ") + " WHERE id IN " + in
	if _, err := s.db.Exec(query, append(args, idArgs...)...); err != nil {
		return fmt.Errorf("updating tracking records: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteTrackingRecords(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	in, args := inClause(ids)
	if _, err := s.db.Exec("DELETE FROM store_fs WHERE id IN "+in, args...); err != nil {
		return fmt.Errorf("deleting tracking records: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) SetTrackingStore(recordID int64, documentID int64) error {
	if _, err := s.db.Exec("UPDATE store_fs SET store_id = ? WHERE id = ?", documentID, recordID); err != nil {
		return fmt.Errorf("linking tracking record: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) CommitWatermarks(marks []*pfs.Watermark) error {
	if len(marks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range marks {
		_, err := tx.Exec(`UPDATE store_fs
			SET last_sync_hash = ?, last_sync_revision = ?, resolve_conflict = 0, staged_for_merge = 0
			WHERE id = ?`, m.Hash, m.Revision, m.RecordID)
		if err != nil {
			return fmt.Errorf("committing watermark for record %d: %w", m.RecordID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing watermarks: %w", err)
	}
	return nil
}

func scanTrackingRecord(row scanner) (*pfs.TrackingRecord, error) {
	var r pfs.TrackingRecord
	var storeID, lastRev sql.NullInt64
	var lastHash sql.NullString
	var removal, merge, resolve int
	err := row.Scan(&r.ID, &r.ProjectID, &r.PootlePath, &r.Path, &storeID, &lastRev,
		&lastHash, &removal, &merge, &resolve)
	if err != nil {
		return nil, err
	}
	r.StoreID = int64Ptr(storeID)
	r.LastSyncRevision = int64Ptr(lastRev)
	r.LastSyncHash = stringPtr(lastHash)
	r.StagedForRemoval = removal != 0
	r.StagedForMerge = merge != 0
	r.ResolveConflict = pfs.ResolveConflict(resolve)
	return &r, nil
}
