package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pfs-go/internal/pfs"
)

// Sync operation tracking

const operationColumns = `id, project_id, run_id, operation, status, started_at, finished_at`

func (s *SQLiteDatabase) CreateSyncOperation(projectID int64, runID, operation string) (*pfs.SyncOperation, error) {
	started := time.Now().UTC()
	res, err := s.db.Exec(`INSERT INTO sync_operations (project_id, run_id, operation, status, started_at)
		VALUES (?, ?, ?, 'running', ?)`, projectID, runID, operation, started)
	if err != nil {
		return nil, fmt.Errorf("creating sync operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("creating sync operation: %w", err)
	}
	return &pfs.SyncOperation{
		ID:        id,
		ProjectID: projectID,
		RunID:     runID,
		Operation: operation,
		Status:    "running",
		StartedAt: started,
	}, nil
}

func (s *SQLiteDatabase) FinishSyncOperation(id int64, status string, actions []*pfs.ActionRecord) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE sync_operations SET status = ?, finished_at = ? WHERE id = ?",
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("finishing sync operation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sync operation %d not found", id)
	}
	for _, a := range actions {
		_, err := tx.Exec(`INSERT INTO sync_actions (operation_id, action, pootle_path, fs_path, failed, error, warning)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, string(a.Action), a.PootlePath, a.FSPath, boolToInt(a.Failed), a.Error, a.Warning)
		if err != nil {
			return fmt.Errorf("recording action: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing sync operation: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListSyncOperations(projectID int64, limit int) ([]*pfs.SyncOperation, error) {
	rows, err := s.db.Query("SELECT "+operationColumns+
		" FROM sync_operations WHERE project_id = ? ORDER BY id DESC LIMIT ?", projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	defer rows.Close()

	var ops []*pfs.SyncOperation
	for rows.Next() {
		op, err := scanSyncOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("listing sync operations: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) FindSyncOperationByRunID(runID string) (*pfs.SyncOperation, error) {
	op, err := scanSyncOperation(s.db.QueryRow("SELECT "+operationColumns+" FROM sync_operations WHERE run_id = ?", runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding sync operation: %w", err)
	}
	return op, nil
}

func (s *SQLiteDatabase) FindSyncActions(operationID int64) ([]*pfs.ActionRecord, error) {
	rows, err := s.db.Query(`SELECT operation_id, action, pootle_path, fs_path, failed, error, warning
		FROM sync_actions WHERE operation_id = ? ORDER BY id`, operationID)
	if err != nil {
		return nil, fmt.Errorf("finding sync actions: %w", err)
	}
	defer rows.Close()

	var actions []*pfs.ActionRecord
	for rows.Next() {
		var a pfs.ActionRecord
		var action string
		var failed int
		if err := rows.Scan(&a.OperationID, &action, &a.PootlePath, &a.FSPath, &failed, &a.Error, &a.Warning); err != nil {
			return nil, fmt.Errorf("finding sync actions: %w", err)
		}
		a.Action = pfs.ActionType(action)
		a.Failed = failed != 0
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding sync actions: %w", err)
	}
	return actions, nil
}

func scanSyncOperation(row scanner) (*pfs.SyncOperation, error) {
	var op pfs.SyncOperation
	var finished sql.NullTime
	if err := row.Scan(&op.ID, &op.ProjectID, &op.RunID, &op.Operation, &op.Status, &op.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		op.FinishedAt = &t
	}
	return &op, nil
}
