// Package lifecycle owns the state machine of a job application: who may
// apply, transition or withdraw it, and which events each accepted change emits.
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/client"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/events"
	"github.com/spec-kit/job-portal/internal/observability"
	"github.com/spec-kit/job-portal/internal/repository"
)

// JobDirectory is the job service as the engine sees it.
type JobDirectory interface {
	GetJob(ctx context.Context, jobID, callerID int64) (*domain.Job, error)
	IncrementApplicationCount(ctx context.Context, jobID int64) error
}

// Engine coordinates application writes and their notification events.
type Engine struct {
	applications repository.ApplicationRepository
	jobs         JobDirectory
	dispatcher   events.Dispatcher
	policy       Policy
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
}

// Dependencies bundles the engine collaborators.
type Dependencies struct {
	Applications repository.ApplicationRepository
	Jobs         JobDirectory
	Dispatcher   events.Dispatcher
	Policy       Policy
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Clock        func() time.Time
}

// ApplyInput describes an application for a job.
type ApplyInput struct {
	JobID          int64
	ApplicantID    int64
	ApplicantName  string
	ApplicantEmail string
	CoverLetter    string
	ResumeURL      string
}

// TransitionInput describes an employer update. Nil fields are left alone.
type TransitionInput struct {
	ApplicationID int64
	ActorID       int64
	ActorRole     domain.Role
	NewStatus     *domain.ApplicationStatus
	Notes         *string
}

// Page selects a zero-based page of results.
type Page struct {
	Number int
	Size   int
}

// PageResult is one page of applications, newest first.
type PageResult struct {
	Items      []domain.Application
	Number     int
	Size       int
	Total      int
	TotalPages int
}

// First reports whether this is the first page.
func (p PageResult) First() bool { return p.Number == 0 }

// Last reports whether no page follows this one.
func (p PageResult) Last() bool { return p.Number+1 >= p.TotalPages }

// NewEngine constructs the engine.
func NewEngine(deps Dependencies) *Engine {
	e := &Engine{
		applications: deps.Applications,
		jobs:         deps.Jobs,
		dispatcher:   deps.Dispatcher,
		policy:       deps.Policy,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		now:          deps.Clock,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.policy.terminal == nil {
		e.policy = NewPolicy()
	}
	return e
}

// Apply records a new PENDING application for the job.
func (e *Engine) Apply(ctx context.Context, in ApplyInput) (*domain.Application, error) {
	exists, err := e.applications.ExistsByJobAndApplicant(ctx, in.JobID, in.ApplicantID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateApplication
	}

	job, err := e.jobs.GetJob(ctx, in.JobID, in.ApplicantID)
	switch {
	case errors.Is(err, client.ErrJobNotFound):
		return nil, ErrJobNotFound
	case err != nil:
		e.logger.Error("job lookup failed", zap.Int64("job_id", in.JobID), zap.Error(err))
		return nil, ErrResourceUnavailable
	}
	if job.EmployerID == in.ApplicantID {
		return nil, ErrSelfApplication
	}

	app := &domain.Application{
		JobID:          in.JobID,
		JobTitle:       job.Title,
		CompanyName:    job.CompanyName,
		ApplicantID:    in.ApplicantID,
		ApplicantName:  in.ApplicantName,
		ApplicantEmail: in.ApplicantEmail,
		EmployerID:     job.EmployerID,
		CoverLetter:    in.CoverLetter,
		ResumeURL:      in.ResumeURL,
		Status:         domain.StatusPending,
	}
	if err := e.applications.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateApplication
		}
		return nil, err
	}

	if err := e.jobs.IncrementApplicationCount(ctx, in.JobID); err != nil {
		e.logger.Warn("failed to increment application count",
			zap.Int64("job_id", in.JobID), zap.Error(err))
	}

	e.logger.Info("application created",
		zap.Int64("application_id", app.ID),
		zap.Int64("job_id", app.JobID),
		zap.Int64("applicant_id", app.ApplicantID))
	e.publishEvent(ctx, events.Event{
		Type:          events.EventApplicationReceived,
		ApplicationID: app.ID,
		Payload:       events.ApplicationReceivedPayload{Application: *app},
	})
	return app, nil
}

// Transition applies an employer's status and notes update.
func (e *Engine) Transition(ctx context.Context, in TransitionInput) (*domain.Application, error) {
	var from domain.ApplicationStatus
	updated, err := e.applications.Update(ctx, in.ApplicationID, func(app *domain.Application) error {
		switch in.ActorRole {
		case domain.RoleEmployer:
			if app.EmployerID != in.ActorID {
				return ErrForbidden
			}
		case domain.RoleJobSeeker:
			return ErrForbidden
		default:
			return ErrForbidden
		}
		if e.policy.IsTerminal(app.Status) {
			return ErrTerminalState
		}
		from = app.Status
		if in.NewStatus != nil {
			app.Status = *in.NewStatus
		}
		if in.Notes != nil {
			app.Notes = *in.Notes
		}
		return nil
	})
	if err != nil {
		return nil, e.mapStoreError(err)
	}

	e.logger.Info("application updated",
		zap.Int64("application_id", updated.ID),
		zap.String("from", string(from)),
		zap.String("to", string(updated.Status)))
	if updated.Status != from {
		e.metrics.RecordTransition(string(from), string(updated.Status))
		e.publishEvent(ctx, events.Event{
			Type:          events.EventApplicationStatusChanged,
			ApplicationID: updated.ID,
			Payload: events.TransitionPayload{
				Application: *updated,
				From:        from,
				To:          updated.Status,
				OccurredAt:  e.now(),
			},
		})
	}
	return updated, nil
}

// Withdraw moves the applicant's own application to WITHDRAWN. A second
// withdraw reports ErrAlreadyWithdrawn.
func (e *Engine) Withdraw(ctx context.Context, applicationID, applicantID int64) error {
	var from domain.ApplicationStatus
	_, err := e.applications.Update(ctx, applicationID, func(app *domain.Application) error {
		if app.ApplicantID != applicantID {
			return ErrForbidden
		}
		if app.Status == domain.StatusWithdrawn {
			return ErrAlreadyWithdrawn
		}
		from = app.Status
		app.Status = domain.StatusWithdrawn
		return nil
	})
	if err != nil {
		return e.mapStoreError(err)
	}
	e.metrics.RecordTransition(string(from), string(domain.StatusWithdrawn))
	e.logger.Info("application withdrawn", zap.Int64("application_id", applicationID))
	return nil
}

// Get returns the application when viewerID is its applicant or employer.
func (e *Engine) Get(ctx context.Context, applicationID, viewerID int64) (*domain.Application, error) {
	app, err := e.applications.GetByID(ctx, applicationID)
	if err != nil {
		return nil, e.mapStoreError(err)
	}
	if app.ApplicantID != viewerID && app.EmployerID != viewerID {
		return nil, ErrForbidden
	}
	return app, nil
}

// ListForApplicant pages through the applicant's own applications.
func (e *Engine) ListForApplicant(ctx context.Context, applicantID int64, page Page) (*PageResult, error) {
	return e.list(ctx, repository.ApplicationFilter{ApplicantID: &applicantID}, page)
}

// ListForEmployer pages through applications to the employer's jobs.
func (e *Engine) ListForEmployer(ctx context.Context, employerID int64, page Page) (*PageResult, error) {
	return e.list(ctx, repository.ApplicationFilter{EmployerID: &employerID}, page)
}

// ListForJob pages through applications for one job. Only the job's employer
// may see them.
func (e *Engine) ListForJob(ctx context.Context, jobID, viewerID int64, page Page) (*PageResult, error) {
	result, err := e.list(ctx, repository.ApplicationFilter{JobID: &jobID}, page)
	if err != nil {
		return nil, err
	}
	for _, app := range result.Items {
		if app.EmployerID != viewerID {
			return nil, ErrForbidden
		}
	}
	return result, nil
}

// ListByStatus pages through the viewer's applications in the given status,
// scoped by role.
func (e *Engine) ListByStatus(ctx context.Context, viewerID int64, role domain.Role, status domain.ApplicationStatus, page Page) (*PageResult, error) {
	filter := repository.ApplicationFilter{Status: &status}
	switch role {
	case domain.RoleEmployer:
		filter.EmployerID = &viewerID
	case domain.RoleJobSeeker:
		filter.ApplicantID = &viewerID
	default:
		return nil, ErrForbidden
	}
	return e.list(ctx, filter, page)
}

// HasApplied reports whether the applicant already applied for the job.
func (e *Engine) HasApplied(ctx context.Context, jobID, applicantID int64) (bool, error) {
	return e.applications.ExistsByJobAndApplicant(ctx, jobID, applicantID)
}

func (e *Engine) list(ctx context.Context, filter repository.ApplicationFilter, page Page) (*PageResult, error) {
	if page.Size <= 0 {
		page.Size = 10
	}
	if page.Size > 100 {
		page.Size = 100
	}
	if page.Number < 0 {
		page.Number = 0
	}
	filter.Limit = page.Size
	filter.Offset = page.Number * page.Size

	items, total, err := e.applications.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Application{}
	}
	return &PageResult{
		Items:      items,
		Number:     page.Number,
		Size:       page.Size,
		Total:      total,
		TotalPages: (total + page.Size - 1) / page.Size,
	}, nil
}

func (e *Engine) mapStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

// publishEvent hands the event to the dispatcher without waiting on delivery.
// Failures are logged; the write has already committed.
func (e *Engine) publishEvent(ctx context.Context, event events.Event) {
	if e.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	if err := e.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("notification dispatch failed",
			zap.String("event_type", string(event.Type)),
			zap.Int64("application_id", event.ApplicationID),
			zap.Error(err))
	}
}
