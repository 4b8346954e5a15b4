package lifecycle

import (
	"net/http"

	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

// Failures reported by the engine. Callers match them with errors.Is.
var (
	ErrNotFound             = apperrors.NewDomainError(apperrors.CodeNotFound, "application not found", http.StatusNotFound, nil)
	ErrJobNotFound          = apperrors.NewDomainError(apperrors.CodeNotFound, "job not found", http.StatusNotFound, nil)
	ErrForbidden            = apperrors.NewDomainError(apperrors.CodeForbidden, "not permitted for this application", http.StatusForbidden, nil)
	ErrDuplicateApplication = apperrors.NewDomainError(apperrors.CodeDuplicate, "already applied for this job", http.StatusConflict, nil)
	ErrSelfApplication      = apperrors.NewDomainError(apperrors.CodeSelfApplication, "cannot apply to your own job", http.StatusBadRequest, nil)
	ErrAlreadyWithdrawn     = apperrors.NewDomainError(apperrors.CodeAlreadyWithdrawn, "application is already withdrawn", http.StatusConflict, nil)
	ErrTerminalState        = apperrors.NewDomainError(apperrors.CodeTerminalState, "application is in a terminal state", http.StatusConflict, nil)
	ErrResourceUnavailable  = apperrors.NewDomainError(apperrors.CodeUpstreamUnavailable, "job service unavailable", http.StatusServiceUnavailable, nil)
)
