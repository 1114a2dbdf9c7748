package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/brody/brody-back/internal/domain"
)

type SQLiteJobsRepository struct {
	db *sql.DB
}

func NewSQLiteJobsRepository(db *sql.DB) *SQLiteJobsRepository {
	return &SQLiteJobsRepository{db: db}
}

func (r *SQLiteJobsRepository) CreateJob(ctx context.Context, job *domain.Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO triage_jobs (
			id, kind, owner_id, payload, status, result, error_message, attempts, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?)
	`,
		job.ID,
		string(job.Kind),
		job.OwnerID,
		string(job.Payload),
		string(job.Status),
		nullableSQLiteJSON(job.Result),
		job.ErrorMessage,
		job.Attempts,
		formatSQLiteTime(job.CreatedAt),
		formatSQLiteTime(job.UpdatedAt),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *SQLiteJobsRepository) UpdateJob(ctx context.Context, job *domain.Job) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE triage_jobs
		SET status = ?, result = ?, error_message = ?, attempts = ?, updated_at = ?
		WHERE id = ?
	`,
		string(job.Status),
		nullableSQLiteJSON(job.Result),
		job.ErrorMessage,
		job.Attempts,
		formatSQLiteTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var (
		job       domain.Job
		kind      string
		status    string
		payload   string
		result    sql.NullString
		createdAt string
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, kind, owner_id, payload, status, result, error_message, attempts, created_at, updated_at
		FROM triage_jobs
		WHERE id = ?
	`, jobID).Scan(
		&job.ID,
		&kind,
		&job.OwnerID,
		&payload,
		&status,
		&result,
		&job.ErrorMessage,
		&job.Attempts,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	job.Payload = json.RawMessage(payload)
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	if job.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *SQLiteJobsRepository) ListJobs(
	ctx context.Context,
	filter domain.JobListFilter,
) ([]domain.JobListItem, int, error) {
	filter = normalizeJobFilter(filter)

	where := strings.Builder{}
	where.WriteString("FROM triage_jobs WHERE 1=1")
	args := make([]any, 0, 4)
	if ownerID := strings.TrimSpace(filter.OwnerID); ownerID != "" {
		where.WriteString(" AND owner_id = ?")
		args = append(args, ownerID)
	}
	if filter.Status != "" {
		where.WriteString(" AND status = ?")
		args = append(args, string(filter.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) "+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	listArgs := append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, status, COALESCE(json_array_length(payload, '$.emails'), 0), created_at, updated_at
		`+where.String()+`
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	items := make([]domain.JobListItem, 0)
	for rows.Next() {
		var (
			item      domain.JobListItem
			kind      string
			status    string
			createdAt string
			updatedAt string
		)
		if err := rows.Scan(&item.JobID, &kind, &status, &item.Emails, &createdAt, &updatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan job item: %w", err)
		}
		item.Kind = domain.JobKind(kind)
		item.Status = domain.JobStatus(status)
		if item.CreatedAt, err = parseSQLiteTime(createdAt); err != nil {
			return nil, 0, err
		}
		if item.UpdatedAt, err = parseSQLiteTime(updatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate job items: %w", err)
	}
	return items, total, nil
}

func nullableSQLiteJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
