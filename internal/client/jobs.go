// Package client talks to the job service that owns job postings.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/identity"
)

var (
	// ErrJobNotFound is returned when the job service reports no such job.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobServiceUnavailable covers transport failures and unexpected responses.
	ErrJobServiceUnavailable = errors.New("job service unavailable")
)

// JobsClient is a client for the job service.
type JobsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewJobsClient creates a client rooted at baseURL.
func NewJobsClient(baseURL string, timeout time.Duration) *JobsClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &JobsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type jobResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	CompanyName string `json:"companyName"`
	EmployerID  int64  `json:"employerId"`
}

// GetJob fetches the job as seen by callerID.
func (c *JobsClient) GetJob(ctx context.Context, jobID, callerID int64) (*domain.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jobURL(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(identity.HeaderUserID, strconv.FormatInt(callerID, 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJobServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrJobNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", ErrJobServiceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrJobServiceUnavailable, err)
	}
	var out jobResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrJobServiceUnavailable, err)
	}
	if out.ID == 0 {
		out.ID = jobID
	}
	return &domain.Job{ID: out.ID, EmployerID: out.EmployerID, Title: out.Title, CompanyName: out.CompanyName}, nil
}

// IncrementApplicationCount bumps the job's application counter.
func (c *JobsClient) IncrementApplicationCount(ctx context.Context, jobID int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.jobURL(jobID)+"/increment-applications", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJobServiceUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrJobNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrJobServiceUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *JobsClient) jobURL(jobID int64) string {
	return c.baseURL + "/api/jobs/" + strconv.FormatInt(jobID, 10)
}
