package dto

import (
	"time"

	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/lifecycle"
)

// CreateApplicationRequest payload for applying to a job.
type CreateApplicationRequest struct {
	JobID       int64  `json:"jobId" validate:"required,gt=0"`
	CoverLetter string `json:"coverLetter" validate:"max=5000"`
	ResumeURL   string `json:"resumeUrl" validate:"omitempty,url,max=2048"`
}

// UpdateApplicationRequest payload for employer updates. Nil fields are left unchanged.
type UpdateApplicationRequest struct {
	Status *string `json:"status" validate:"omitempty,oneof=PENDING REVIEWED SHORTLISTED INTERVIEW ACCEPTED OFFERED REJECTED WITHDRAWN"`
	Notes  *string `json:"notes" validate:"omitempty,max=5000"`
}

// ApplicationResponse is the wire view of an application.
type ApplicationResponse struct {
	ID             int64                    `json:"id"`
	JobID          int64                    `json:"jobId"`
	JobTitle       string                   `json:"jobTitle"`
	CompanyName    string                   `json:"companyName"`
	ApplicantID    int64                    `json:"applicantId"`
	ApplicantName  string                   `json:"applicantName"`
	ApplicantEmail string                   `json:"applicantEmail"`
	EmployerID     int64                    `json:"employerId"`
	CoverLetter    string                   `json:"coverLetter"`
	ResumeURL      string                   `json:"resumeUrl"`
	Status         domain.ApplicationStatus `json:"status"`
	Notes          string                   `json:"notes"`
	AppliedAt      time.Time                `json:"appliedAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

// PagedResponse wraps one page of results.
type PagedResponse[T any] struct {
	Content       []T  `json:"content"`
	PageNumber    int  `json:"pageNumber"`
	PageSize      int  `json:"pageSize"`
	TotalElements int  `json:"totalElements"`
	TotalPages    int  `json:"totalPages"`
	First         bool `json:"first"`
	Last          bool `json:"last"`
}

// NewApplicationResponse maps a domain application.
func NewApplicationResponse(a *domain.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:             a.ID,
		JobID:          a.JobID,
		JobTitle:       a.JobTitle,
		CompanyName:    a.CompanyName,
		ApplicantID:    a.ApplicantID,
		ApplicantName:  a.ApplicantName,
		ApplicantEmail: a.ApplicantEmail,
		EmployerID:     a.EmployerID,
		CoverLetter:    a.CoverLetter,
		ResumeURL:      a.ResumeURL,
		Status:         a.Status,
		Notes:          a.Notes,
		AppliedAt:      a.AppliedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// NewApplicationPage maps a lifecycle page.
func NewApplicationPage(p *lifecycle.PageResult) PagedResponse[ApplicationResponse] {
	content := make([]ApplicationResponse, 0, len(p.Items))
	for i := range p.Items {
		content = append(content, NewApplicationResponse(&p.Items[i]))
	}
	return PagedResponse[ApplicationResponse]{
		Content:       content,
		PageNumber:    p.Number,
		PageSize:      p.Size,
		TotalElements: p.Total,
		TotalPages:    p.TotalPages,
		First:         p.First(),
		Last:          p.Last(),
	}
}
