package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/job-portal/internal/domain"
)

// MemoryApplicationRepository keeps applications in process memory. It is used
// when no database is configured and by tests.
type MemoryApplicationRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.Application
	now    func() time.Time
}

// NewMemoryApplicationRepository builds an empty store.
func NewMemoryApplicationRepository() *MemoryApplicationRepository {
	return &MemoryApplicationRepository{rows: make(map[int64]domain.Application), now: time.Now}
}

func (m *MemoryApplicationRepository) Create(_ context.Context, app *domain.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.JobID == app.JobID && existing.ApplicantID == app.ApplicantID {
			return ErrDuplicate
		}
	}
	m.nextID++
	now := m.now()
	app.ID = m.nextID
	app.AppliedAt = now
	app.UpdatedAt = now
	m.rows[app.ID] = *app
	return nil
}

func (m *MemoryApplicationRepository) GetByID(_ context.Context, id int64) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (m *MemoryApplicationRepository) ExistsByJobAndApplicant(_ context.Context, jobID, applicantID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if existing.JobID == jobID && existing.ApplicantID == applicantID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryApplicationRepository) Update(_ context.Context, id int64, mutate func(*domain.Application) error) (*domain.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if err := mutate(&current); err != nil {
		return nil, err
	}
	stored := m.rows[id]
	stored.Status = current.Status
	stored.Notes = current.Notes
	stored.UpdatedAt = m.now()
	m.rows[id] = stored
	return &stored, nil
}

func (m *MemoryApplicationRepository) List(_ context.Context, filter ApplicationFilter) ([]domain.Application, int, error) {
	m.mu.Lock()
	matched := make([]domain.Application, 0, len(m.rows))
	for _, app := range m.rows {
		if filter.ApplicantID != nil && app.ApplicantID != *filter.ApplicantID {
			continue
		}
		if filter.EmployerID != nil && app.EmployerID != *filter.EmployerID {
			continue
		}
		if filter.JobID != nil && app.JobID != *filter.JobID {
			continue
		}
		if filter.Status != nil && app.Status != *filter.Status {
			continue
		}
		matched = append(matched, app)
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].AppliedAt.Equal(matched[j].AppliedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].AppliedAt.After(matched[j].AppliedAt)
	})

	total := len(matched)
	limit, offset := normalizePage(filter.Limit, filter.Offset)
	if offset >= total {
		return []domain.Application{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// MemoryUserRepository keeps users in process memory.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]domain.User
}

// NewMemoryUserRepository builds an empty store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{rows: make(map[int64]domain.User)}
}

func (m *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rows {
		if strings.EqualFold(existing.Email, user.Email) {
			return ErrDuplicate
		}
	}
	m.nextID++
	now := time.Now()
	user.ID = m.nextID
	user.CreatedAt = now
	user.UpdatedAt = now
	m.rows[user.ID] = *user
	return nil
}

func (m *MemoryUserRepository) GetByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.rows {
		if strings.EqualFold(user.Email, email) {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}
