package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/job-portal/internal/client"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/events"
	"github.com/spec-kit/job-portal/internal/repository"
)

type jobDirectoryMock struct {
	mock.Mock
}

func (m *jobDirectoryMock) GetJob(ctx context.Context, jobID, callerID int64) (*domain.Job, error) {
	args := m.Called(ctx, jobID, callerID)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *jobDirectoryMock) IncrementApplicationCount(ctx context.Context, jobID int64) error {
	return m.Called(ctx, jobID).Error(0)
}

type failingDispatcher struct{}

func (failingDispatcher) Publish(context.Context, events.Event) error {
	return events.ErrDispatcherFull
}

func (failingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

type fixture struct {
	engine *Engine
	repo   *repository.MemoryApplicationRepository
	jobs   *jobDirectoryMock
}

func newFixture(t *testing.T, dispatcher events.Dispatcher, policy Policy) *fixture {
	t.Helper()
	repo := repository.NewMemoryApplicationRepository()
	jobs := &jobDirectoryMock{}
	jobs.On("GetJob", mock.Anything, int64(42), mock.Anything).
		Return(&domain.Job{ID: 42, EmployerID: 5, Title: "Go Engineer", CompanyName: "Acme"}, nil).Maybe()
	jobs.On("IncrementApplicationCount", mock.Anything, mock.Anything).Return(nil).Maybe()
	return &fixture{
		engine: NewEngine(Dependencies{
			Applications: repo,
			Jobs:         jobs,
			Dispatcher:   dispatcher,
			Policy:       policy,
			Logger:       zap.NewNop(),
		}),
		repo: repo,
		jobs: jobs,
	}
}

func (f *fixture) apply(t *testing.T, applicantID int64) *domain.Application {
	t.Helper()
	app, err := f.engine.Apply(context.Background(), ApplyInput{JobID: 42, ApplicantID: applicantID, ApplicantEmail: "s@x.io"})
	require.NoError(t, err)
	return app
}

func statusPtr(s domain.ApplicationStatus) *domain.ApplicationStatus { return &s }

func TestApplyTwiceIsDuplicate(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())

	app := f.apply(t, 7)
	assert.Equal(t, domain.StatusPending, app.Status)
	assert.Equal(t, int64(5), app.EmployerID)
	assert.Equal(t, "Go Engineer", app.JobTitle)

	_, err := f.engine.Apply(context.Background(), ApplyInput{JobID: 42, ApplicantID: 7})
	assert.ErrorIs(t, err, ErrDuplicateApplication)

	_, total, err := f.repo.List(context.Background(), repository.ApplicationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	f.jobs.AssertNumberOfCalls(t, "IncrementApplicationCount", 1)
}

func TestApplyJobLookupFailures(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())
	f.jobs.On("GetJob", mock.Anything, int64(404), mock.Anything).Return(nil, client.ErrJobNotFound)
	f.jobs.On("GetJob", mock.Anything, int64(503), mock.Anything).Return(nil, client.ErrJobServiceUnavailable)

	_, err := f.engine.Apply(context.Background(), ApplyInput{JobID: 404, ApplicantID: 7})
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = f.engine.Apply(context.Background(), ApplyInput{JobID: 503, ApplicantID: 7})
	assert.ErrorIs(t, err, ErrResourceUnavailable)

	exists, err := f.engine.HasApplied(context.Background(), 503, 7)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestApplyToOwnJobForbidden(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())

	_, err := f.engine.Apply(context.Background(), ApplyInput{JobID: 42, ApplicantID: 5})
	assert.ErrorIs(t, err, ErrSelfApplication)
}

func TestApplySurvivesIncrementFailure(t *testing.T) {
	repo := repository.NewMemoryApplicationRepository()
	jobs := &jobDirectoryMock{}
	jobs.On("GetJob", mock.Anything, int64(42), int64(7)).Return(&domain.Job{ID: 42, EmployerID: 5}, nil)
	jobs.On("IncrementApplicationCount", mock.Anything, int64(42)).Return(errors.New("boom"))
	engine := NewEngine(Dependencies{Applications: repo, Jobs: jobs, Dispatcher: failingDispatcher{}})

	app, err := engine.Apply(context.Background(), ApplyInput{JobID: 42, ApplicantID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, app.Status)
	jobs.AssertExpectations(t)
}

func TestTransitionEmitsEvent(t *testing.T) {
	dispatcher := events.NewAsyncDispatcher(zap.NewNop(), 8, 1)
	defer dispatcher.Close()

	var mu sync.Mutex
	var seen []events.TransitionPayload
	dispatcher.Subscribe(events.EventApplicationStatusChanged, func(_ context.Context, e events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Payload.(events.TransitionPayload))
		return nil
	})

	f := newFixture(t, dispatcher, NewPolicy())
	app := f.apply(t, 7)

	updated, err := f.engine.Transition(context.Background(), TransitionInput{
		ApplicationID: app.ID,
		ActorID:       5,
		ActorRole:     domain.RoleEmployer,
		NewStatus:     statusPtr(domain.StatusRejected),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, domain.StatusPending, seen[0].From)
	assert.Equal(t, domain.StatusRejected, seen[0].To)
	assert.Equal(t, app.ID, seen[0].Application.ID)
	mu.Unlock()
}

func TestTransitionSurvivesDispatchFailure(t *testing.T) {
	f := newFixture(t, failingDispatcher{}, NewPolicy())
	app := f.apply(t, 7)

	updated, err := f.engine.Transition(context.Background(), TransitionInput{
		ApplicationID: app.ID,
		ActorID:       5,
		ActorRole:     domain.RoleEmployer,
		NewStatus:     statusPtr(domain.StatusRejected),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, updated.Status)

	stored, err := f.repo.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, stored.Status)
}

func TestTransitionForbidden(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())
	app := f.apply(t, 7)

	cases := map[string]TransitionInput{
		"other employer":        {ActorID: 6, ActorRole: domain.RoleEmployer},
		"applicant":             {ActorID: 7, ActorRole: domain.RoleJobSeeker},
		"employer id as seeker": {ActorID: 5, ActorRole: domain.RoleJobSeeker},
		"unknown role":          {ActorID: 5, ActorRole: domain.Role("ADMIN")},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			in.ApplicationID = app.ID
			in.NewStatus = statusPtr(domain.StatusAccepted)
			_, err := f.engine.Transition(context.Background(), in)
			assert.ErrorIs(t, err, ErrForbidden)

			stored, err := f.repo.GetByID(context.Background(), app.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, stored.Status)
		})
	}
}

func TestTransitionNotFound(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())

	_, err := f.engine.Transition(context.Background(), TransitionInput{ApplicationID: 99, ActorID: 5, ActorRole: domain.RoleEmployer})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionNotesOnly(t *testing.T) {
	rec := &recordingDispatcher{}
	f := newFixture(t, rec, NewPolicy())
	app := f.apply(t, 7)
	notes := "call back monday"

	updated, err := f.engine.Transition(context.Background(), TransitionInput{
		ApplicationID: app.ID,
		ActorID:       5,
		ActorRole:     domain.RoleEmployer,
		NewStatus:     statusPtr(domain.StatusPending),
		Notes:         &notes,
	})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, 1, rec.count(), "only the received event is published")
}

func TestTerminalStates(t *testing.T) {
	f := newFixture(t, nil, NewPolicy(domain.StatusRejected))
	app := f.apply(t, 7)

	_, err := f.engine.Transition(context.Background(), TransitionInput{
		ApplicationID: app.ID, ActorID: 5, ActorRole: domain.RoleEmployer, NewStatus: statusPtr(domain.StatusRejected),
	})
	require.NoError(t, err)

	_, err = f.engine.Transition(context.Background(), TransitionInput{
		ApplicationID: app.ID, ActorID: 5, ActorRole: domain.RoleEmployer, NewStatus: statusPtr(domain.StatusAccepted),
	})
	assert.ErrorIs(t, err, ErrTerminalState)

	other := f.apply(t, 8)
	require.NoError(t, f.engine.Withdraw(context.Background(), other.ID, 8))
	_, err = f.engine.Transition(context.Background(), TransitionInput{
		ApplicationID: other.ID, ActorID: 5, ActorRole: domain.RoleEmployer, NewStatus: statusPtr(domain.StatusReviewed),
	})
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestWithdrawTwice(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())
	app := f.apply(t, 7)

	assert.ErrorIs(t, f.engine.Withdraw(context.Background(), app.ID, 8), ErrForbidden)
	require.NoError(t, f.engine.Withdraw(context.Background(), app.ID, 7))
	assert.ErrorIs(t, f.engine.Withdraw(context.Background(), app.ID, 7), ErrAlreadyWithdrawn)
	assert.ErrorIs(t, f.engine.Withdraw(context.Background(), 99, 7), ErrNotFound)

	stored, err := f.repo.GetByID(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWithdrawn, stored.Status)
}

func TestConcurrentWithdrawSerializes(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())
	app := f.apply(t, 7)

	var wg sync.WaitGroup
	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.engine.Withdraw(context.Background(), app.ID, 7)
		}()
	}
	wg.Wait()
	close(results)

	var ok, already int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyWithdrawn):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, already)
}

func TestReads(t *testing.T) {
	f := newFixture(t, nil, NewPolicy())
	f.jobs.On("GetJob", mock.Anything, int64(43), mock.Anything).Return(&domain.Job{ID: 43, EmployerID: 6}, nil)
	first := f.apply(t, 7)
	f.apply(t, 8)
	_, err := f.engine.Apply(context.Background(), ApplyInput{JobID: 43, ApplicantID: 7})
	require.NoError(t, err)

	got, err := f.engine.Get(context.Background(), first.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	_, err = f.engine.Get(context.Background(), first.ID, 8)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.engine.ListForApplicant(context.Background(), 7, Page{Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, mine.Total)
	assert.Equal(t, 2, mine.TotalPages)
	assert.Len(t, mine.Items, 1)
	assert.True(t, mine.First())
	assert.False(t, mine.Last())

	employer, err := f.engine.ListForEmployer(context.Background(), 5, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, employer.Total)

	byJob, err := f.engine.ListForJob(context.Background(), 42, 5, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, byJob.Total)
	_, err = f.engine.ListForJob(context.Background(), 42, 6, Page{})
	assert.ErrorIs(t, err, ErrForbidden)

	pending, err := f.engine.ListByStatus(context.Background(), 7, domain.RoleJobSeeker, domain.StatusPending, Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, pending.Total)
	pending, err = f.engine.ListByStatus(context.Background(), 6, domain.RoleEmployer, domain.StatusPending, Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, pending.Total)
	_, err = f.engine.ListByStatus(context.Background(), 6, domain.Role("ADMIN"), domain.StatusPending, Page{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]string{"rejected", "ACCEPTED"})
	require.NoError(t, err)
	assert.True(t, p.IsTerminal(domain.StatusRejected))
	assert.True(t, p.IsTerminal(domain.StatusAccepted))
	assert.True(t, p.IsTerminal(domain.StatusWithdrawn))
	assert.False(t, p.IsTerminal(domain.StatusOffered))

	_, err = ParsePolicy([]string{"ARCHIVED"})
	assert.Error(t, err)

	assert.True(t, Policy{}.IsTerminal(domain.StatusWithdrawn))
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
