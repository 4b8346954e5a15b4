package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "7", r.Header.Get("X-User-Id"))
		switch r.URL.Path {
		case "/api/jobs/42":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":42,"title":"Go Engineer","companyName":"Acme","employerId":5,"skills":["go"]}`))
		case "/api/jobs/43":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := NewJobsClient(srv.URL+"/", time.Second)

	job, err := c.GetJob(context.Background(), 42, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(5), job.EmployerID)
	assert.Equal(t, "Go Engineer", job.Title)
	assert.Equal(t, "Acme", job.CompanyName)

	_, err = c.GetJob(context.Background(), 43, 7)
	assert.ErrorIs(t, err, ErrJobNotFound)

	_, err = c.GetJob(context.Background(), 44, 7)
	assert.ErrorIs(t, err, ErrJobServiceUnavailable)
}

func TestGetJobUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewJobsClient(url, time.Second).GetJob(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrJobServiceUnavailable)
}

func TestIncrementApplicationCount(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/jobs/42/increment-applications", r.URL.Path)
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, NewJobsClient(srv.URL, time.Second).IncrementApplicationCount(context.Background(), 42))
	assert.Equal(t, 1, hits)
}
