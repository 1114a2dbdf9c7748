package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brody/brody-back/internal/domain"
)

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(pool *pgxpool.Pool) *PostgresJobsRepository {
	return &PostgresJobsRepository{pool: pool}
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO triage_jobs (
			id,
			kind,
			owner_id,
			payload,
			status,
			result,
			error_message,
			attempts,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		job.ID,
		string(job.Kind),
		job.OwnerID,
		[]byte(job.Payload),
		string(job.Status),
		nullableJSON(job.Result),
		job.ErrorMessage,
		job.Attempts,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) UpdateJob(ctx context.Context, job *domain.Job) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE triage_jobs
		SET status = $2,
			result = $3,
			error_message = $4,
			attempts = $5,
			updated_at = $6
		WHERE id = $1
	`, job.ID, string(job.Status), nullableJSON(job.Result), job.ErrorMessage, job.Attempts, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	var (
		job       domain.Job
		kind      string
		status    string
		payload   []byte
		result    []byte
		createdAt time.Time
		updatedAt time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, owner_id, payload, status, result, error_message, attempts, created_at, updated_at
		FROM triage_jobs
		WHERE id = $1
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query job: %w", err)
	}

	job.Kind = domain.JobKind(kind)
	job.Status = domain.JobStatus(status)
	job.Payload = json.RawMessage(payload)
	job.Result = json.RawMessage(result)
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return &job, nil
}

func (r *PostgresJobsRepository) ListJobs(
	ctx context.Context,
	filter domain.JobListFilter,
) ([]domain.JobListItem, int, error) {
	filter = normalizeJobFilter(filter)
	baseQuery, args := buildJobFilters(filter)

	var total int
	countQuery := "SELECT COUNT(*) " + baseQuery
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	listQuery := fmt.Sprintf(
		`SELECT id, kind, status, COALESCE(jsonb_array_length(payload->'emails'), 0), created_at, updated_at
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		baseQuery,
		len(args)+1,
		len(args)+2,
	)
	listArgs := append(args, filter.PageSize, (filter.Page-1)*filter.PageSize)
	rows, err := r.pool.Query(ctx, listQuery, listArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	items := make([]domain.JobListItem, 0)
	for rows.Next() {
		var (
			item   domain.JobListItem
			kind   string
			status string
		)
		if err := rows.Scan(&item.JobID, &kind, &status, &item.Emails, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan job item: %w", err)
		}
		item.Kind = domain.JobKind(kind)
		item.Status = domain.JobStatus(status)
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate job items: %w", rows.Err())
	}

	return items, total, nil
}

func buildJobFilters(filter domain.JobListFilter) (string, []any) {
	query := strings.Builder{}
	query.WriteString("FROM triage_jobs WHERE 1=1")

	args := make([]any, 0, 2)
	argIndex := 1

	if ownerID := strings.TrimSpace(filter.OwnerID); ownerID != "" {
		query.WriteString(fmt.Sprintf(" AND owner_id = $%d", argIndex))
		args = append(args, ownerID)
		argIndex++
	}

	if filter.Status != "" {
		query.WriteString(fmt.Sprintf(" AND status = $%d", argIndex))
		args = append(args, string(filter.Status))
	}

	return query.String(), args
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
