package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/job-portal/internal/api/dto"
	"github.com/spec-kit/job-portal/internal/domain"
	"github.com/spec-kit/job-portal/internal/identity"
	"github.com/spec-kit/job-portal/internal/lifecycle"
	apperrors "github.com/spec-kit/job-portal/pkg/util"
)

// NameLookup resolves a user's display name.
type NameLookup interface {
	Me(ctx context.Context, userID int64) (*domain.User, error)
}

// ApplicationsHandler exposes the application lifecycle over HTTP.
type ApplicationsHandler struct {
	engine *lifecycle.Engine
	users  NameLookup
}

// NewApplicationsHandler constructs handler. users may be nil, in which case
// the applicant's email stands in for the name.
func NewApplicationsHandler(engine *lifecycle.Engine, users NameLookup) *ApplicationsHandler {
	return &ApplicationsHandler{engine: engine, users: users}
}

// Apply handles POST /api/applications.
func (h *ApplicationsHandler) Apply(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	app, err := h.engine.Apply(c.UserContext(), lifecycle.ApplyInput{
		JobID:          req.JobID,
		ApplicantID:    caller.UserID,
		ApplicantName:  h.displayName(c.UserContext(), caller),
		ApplicantEmail: caller.Email,
		CoverLetter:    req.CoverLetter,
		ResumeURL:      req.ResumeURL,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// Update handles PUT /api/applications/:id.
func (h *ApplicationsHandler) Update(c *fiber.Ctx) error {
	var req dto.UpdateApplicationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.transition(c, req)
}

// UpdateStatus handles PUT /api/applications/:id/status.
func (h *ApplicationsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	return h.transition(c, dto.UpdateApplicationRequest{Status: &req.Status})
}

func (h *ApplicationsHandler) transition(c *fiber.Ctx, req dto.UpdateApplicationRequest) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := dto.Validate(req); err != nil {
		return err
	}

	in := lifecycle.TransitionInput{
		ApplicationID: id,
		ActorID:       caller.UserID,
		ActorRole:     caller.Role,
		Notes:         req.Notes,
	}
	if req.Status != nil {
		status, err := domain.ParseApplicationStatus(*req.Status)
		if err != nil {
			return apperrors.NewValidationError("invalid status", nil)
		}
		in.NewStatus = &status
	}

	app, err := h.engine.Transition(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// Get handles GET /api/applications/:id.
func (h *ApplicationsHandler) Get(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	app, err := h.engine.Get(c.UserContext(), id, caller.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationResponse(app)})
}

// Mine handles GET /api/applications/my-applications.
func (h *ApplicationsHandler) Mine(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	page, err := h.engine.ListForApplicant(c.UserContext(), caller.UserID, pageFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationPage(page)})
}

// ForEmployer handles GET /api/applications/employer/applications.
func (h *ApplicationsHandler) ForEmployer(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	page, err := h.engine.ListForEmployer(c.UserContext(), caller.UserID, pageFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationPage(page)})
}

// ForJob handles GET /api/applications/job/:jobId.
func (h *ApplicationsHandler) ForJob(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	jobID, err := pathID(c, "jobId")
	if err != nil {
		return err
	}
	page, err := h.engine.ListForJob(c.UserContext(), jobID, caller.UserID, pageFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationPage(page)})
}

// ByStatus handles GET /api/applications/status/:status.
func (h *ApplicationsHandler) ByStatus(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	status, err := domain.ParseApplicationStatus(c.Params("status"))
	if err != nil {
		return apperrors.NewValidationError("invalid status", nil)
	}
	page, err := h.engine.ListByStatus(c.UserContext(), caller.UserID, caller.Role, status, pageFrom(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApplicationPage(page)})
}

// Withdraw handles DELETE /api/applications/:id/withdraw.
func (h *ApplicationsHandler) Withdraw(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	if err := h.engine.Withdraw(c.UserContext(), id, caller.UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "Application withdrawn successfully"}})
}

// Check handles GET /api/applications/check/:jobId.
func (h *ApplicationsHandler) Check(c *fiber.Ctx) error {
	caller, err := callerFrom(c)
	if err != nil {
		return err
	}
	jobID, err := pathID(c, "jobId")
	if err != nil {
		return err
	}
	applied, err := h.engine.HasApplied(c.UserContext(), jobID, caller.UserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"hasApplied": applied}})
}

func (h *ApplicationsHandler) displayName(ctx context.Context, caller *identity.Identity) string {
	if h.users != nil {
		if user, err := h.users.Me(ctx, caller.UserID); err == nil && user.Name != "" {
			return user.Name
		}
	}
	return caller.Email
}

func callerFrom(c *fiber.Ctx) (*identity.Identity, error) {
	caller, ok := identity.FromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthenticated(apperrors.CodeMissingCredential)
	}
	return caller, nil
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, nil)
	}
	return id, nil
}

func pageFrom(c *fiber.Ctx) lifecycle.Page {
	return lifecycle.Page{Number: c.QueryInt("page", 0), Size: c.QueryInt("size", 10)}
}
