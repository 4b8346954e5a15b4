package domain

import (
	"fmt"
	"strings"
	"time"
)

// ApplicationStatus enumerates lifecycle states for job applications.
type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "PENDING"
	StatusReviewed    ApplicationStatus = "REVIEWED"
	StatusShortlisted ApplicationStatus = "SHORTLISTED"
	StatusInterview   ApplicationStatus = "INTERVIEW"
	StatusAccepted    ApplicationStatus = "ACCEPTED"
	StatusOffered     ApplicationStatus = "OFFERED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"
)

var applicationStatuses = []ApplicationStatus{
	StatusPending,
	StatusReviewed,
	StatusShortlisted,
	StatusInterview,
	StatusAccepted,
	StatusOffered,
	StatusRejected,
	StatusWithdrawn,
}

// ApplicationStatuses lists every status.
func ApplicationStatuses() []ApplicationStatus {
	return append([]ApplicationStatus(nil), applicationStatuses...)
}

// ParseApplicationStatus converts raw input into a status.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	candidate := ApplicationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	for _, status := range applicationStatuses {
		if status == candidate {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown application status %q", raw)
}

// Application is the job-application aggregate. At most one exists per (JobID, ApplicantID).
type Application struct {
	ID             int64
	JobID          int64
	JobTitle       string
	CompanyName    string
	ApplicantID    int64
	ApplicantName  string
	ApplicantEmail string
	EmployerID     int64
	CoverLetter    string
	ResumeURL      string
	Status         ApplicationStatus
	Notes          string
	AppliedAt      time.Time
	UpdatedAt      time.Time
}

// Job is the job collaborator's view of a posting.
type Job struct {
	ID          int64
	EmployerID  int64
	Title       string
	CompanyName string
}
