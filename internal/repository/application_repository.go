package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/job-portal/internal/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = pgx.ErrNoRows

// ErrDuplicate is returned when a unique key is already taken.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolation = "23505"

// ApplicationFilter captures listing parameters. Nil fields are not filtered on.
type ApplicationFilter struct {
	ApplicantID *int64
	EmployerID  *int64
	JobID       *int64
	Status      *domain.ApplicationStatus
	Limit       int
	Offset      int
}

// ApplicationRepository encapsulates application persistence.
type ApplicationRepository interface {
	Create(ctx context.Context, app *domain.Application) error
	GetByID(ctx context.Context, id int64) (*domain.Application, error)
	ExistsByJobAndApplicant(ctx context.Context, jobID, applicantID int64) (bool, error)
	// Update runs mutate on the current row while holding its lock and persists
	// status and notes when mutate returns nil. Concurrent updates of the same
	// id are serialized.
	Update(ctx context.Context, id int64, mutate func(*domain.Application) error) (*domain.Application, error)
	List(ctx context.Context, filter ApplicationFilter) ([]domain.Application, int, error)
}

type applicationRepository struct {
	pool *pgxpool.Pool
}

// NewApplicationRepository returns a Postgres-backed implementation.
func NewApplicationRepository(pool *pgxpool.Pool) ApplicationRepository {
	return &applicationRepository{pool: pool}
}

const applicationColumns = `id, job_id, job_title, company_name, applicant_id, applicant_name, applicant_email,
               employer_id, cover_letter, resume_url, status, notes, applied_at, updated_at`

func (r *applicationRepository) Create(ctx context.Context, app *domain.Application) error {
	const query = `
        INSERT INTO job_applications (job_id, job_title, company_name, applicant_id, applicant_name, applicant_email,
            employer_id, cover_letter, resume_url, status, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
        RETURNING id, applied_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		app.JobID,
		app.JobTitle,
		app.CompanyName,
		app.ApplicantID,
		app.ApplicantName,
		app.ApplicantEmail,
		app.EmployerID,
		app.CoverLetter,
		app.ResumeURL,
		app.Status,
		app.Notes,
	).Scan(&app.ID, &app.AppliedAt, &app.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *applicationRepository) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE id=$1`
	return scanApplication(r.pool.QueryRow(ctx, query, id))
}

func (r *applicationRepository) ExistsByJobAndApplicant(ctx context.Context, jobID, applicantID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM job_applications WHERE job_id=$1 AND applicant_id=$2)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, jobID, applicantID).Scan(&exists)
	return exists, err
}

func (r *applicationRepository) Update(ctx context.Context, id int64, mutate func(*domain.Application) error) (*domain.Application, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + applicationColumns + ` FROM job_applications WHERE id=$1 FOR UPDATE`
	app, err := scanApplication(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := mutate(app); err != nil {
		return nil, err
	}

	const update = `
        UPDATE job_applications SET status=$1, notes=$2, updated_at=NOW()
        WHERE id=$3
        RETURNING updated_at`
	if err := tx.QueryRow(ctx, update, app.Status, app.Notes, app.ID).Scan(&app.UpdatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func (r *applicationRepository) List(ctx context.Context, filter ApplicationFilter) ([]domain.Application, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ApplicantID != nil {
		args = append(args, *filter.ApplicantID)
		clauses = append(clauses, fmt.Sprintf("applicant_id=$%d", len(args)))
	}
	if filter.EmployerID != nil {
		args = append(args, *filter.EmployerID)
		clauses = append(clauses, fmt.Sprintf("employer_id=$%d", len(args)))
	}
	if filter.JobID != nil {
		args = append(args, *filter.JobID)
		clauses = append(clauses, fmt.Sprintf("job_id=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	where := strings.Join(clauses, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM job_applications WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM job_applications WHERE %s ORDER BY applied_at DESC, id DESC LIMIT %d OFFSET %d`,
		applicationColumns, where, limit, offset)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []domain.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *app)
	}
	return result, total, rows.Err()
}

func scanApplication(row pgx.Row) (*domain.Application, error) {
	var app domain.Application
	if err := row.Scan(
		&app.ID,
		&app.JobID,
		&app.JobTitle,
		&app.CompanyName,
		&app.ApplicantID,
		&app.ApplicantName,
		&app.ApplicantEmail,
		&app.EmployerID,
		&app.CoverLetter,
		&app.ResumeURL,
		&app.Status,
		&app.Notes,
		&app.AppliedAt,
		&app.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &app, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
