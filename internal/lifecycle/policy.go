package lifecycle

import (
	"fmt"

	"github.com/spec-kit/job-portal/internal/domain"
)

// Policy decides which statuses accept no further transitions.
// WITHDRAWN is always terminal.
type Policy struct {
	terminal map[domain.ApplicationStatus]struct{}
}

// NewPolicy builds a policy with the given extra terminal statuses.
func NewPolicy(terminal ...domain.ApplicationStatus) Policy {
	p := Policy{terminal: map[domain.ApplicationStatus]struct{}{domain.StatusWithdrawn: {}}}
	for _, status := range terminal {
		p.terminal[status] = struct{}{}
	}
	return p
}

// ParsePolicy builds a policy from configured status names.
func ParsePolicy(names []string) (Policy, error) {
	statuses := make([]domain.ApplicationStatus, 0, len(names))
	for _, name := range names {
		status, err := domain.ParseApplicationStatus(name)
		if err != nil {
			return Policy{}, fmt.Errorf("terminal status: %w", err)
		}
		statuses = append(statuses, status)
	}
	return NewPolicy(statuses...), nil
}

// IsTerminal reports whether status accepts no further transitions.
func (p Policy) IsTerminal(status domain.ApplicationStatus) bool {
	if status == domain.StatusWithdrawn {
		return true
	}
	_, ok := p.terminal[status]
	return ok
}
