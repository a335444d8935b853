package handlers

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/models"
	"alfredoptarigan/cv-profiler/internal/services"
)

// SessionHandler serves the interactive flow: parse, review and edit, then render.
type SessionHandler struct {
	orchestrator services.BatchOrchestrator
	maxFileSize  int64
}

func NewSessionHandler(orchestrator services.BatchOrchestrator, maxFileSize int64) *SessionHandler {
	return &SessionHandler{
		orchestrator: orchestrator,
		maxFileSize:  maxFileSize,
	}
}

// HandleCreate handles POST /sessions
func (h *SessionHandler) HandleCreate(c *fiber.Ctx) error {
	if err := h.orchestrator.Ready(); err != nil {
		return respondError(c, err)
	}

	uploads, notes, err := readUploads(c, h.maxFileSize)
	if err != nil {
		return respondError(c, err)
	}

	start, err := h.orchestrator.StartSession(c.UserContext(), notes, uploads)
	if err != nil {
		return respondError(c, err)
	}

	batch := start.Result.Response()
	if start.SessionID == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": "no profile could be parsed",
			"batch": batch,
		})
	}

	return c.Status(fiber.StatusCreated).JSON(models.SessionResponse{
		SessionID: start.SessionID,
		Documents: batch.Documents,
	})
}

// HandleGet handles GET /sessions/:id
func (h *SessionHandler) HandleGet(c *fiber.Ctx) error {
	session, err := h.orchestrator.Profiles(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	profiles := make(map[string]models.CandidateProfile, len(session.Profiles))
	for name, profile := range session.Profiles {
		if profile != nil {
			profiles[name] = *profile
		}
	}

	return c.JSON(models.SessionProfilesResponse{
		SessionID: session.ID,
		Profiles:  profiles,
		Order:     session.Order,
	})
}

// HandleGetProfile handles GET /sessions/:id/profiles/:filename
func (h *SessionHandler) HandleGetProfile(c *fiber.Ctx) error {
	filename, err := filenameParam(c)
	if err != nil {
		return respondError(c, err)
	}

	profile, err := h.orchestrator.Profile(c.UserContext(), c.Params("id"), filename)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// HandleEdit handles PUT /sessions/:id/profiles/:filename. The body is the
// edited profile JSON; a rejected edit keeps the stored profile.
func (h *SessionHandler) HandleEdit(c *fiber.Ctx) error {
	filename, err := filenameParam(c)
	if err != nil {
		return respondError(c, err)
	}

	profile, err := h.orchestrator.ProposeEdit(c.UserContext(), c.Params("id"), filename, string(c.Body()))
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindInvalidInput) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{
				Error: err.Error(),
				Kind:  string(apperrors.KindInvalidInput),
			})
		}
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// HandleRender handles POST /sessions/:id/render
func (h *SessionHandler) HandleRender(c *fiber.Ctx) error {
	result, err := h.orchestrator.RenderSession(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return deliver(c, h.orchestrator, result)
}

// HandleDelete handles DELETE /sessions/:id
func (h *SessionHandler) HandleDelete(c *fiber.Ctx) error {
	if err := h.orchestrator.EndSession(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func filenameParam(c *fiber.Ctx) (string, error) {
	filename, err := url.PathUnescape(c.Params("filename"))
	if err != nil {
		return "", apperrors.New(apperrors.KindInvalidInput, "invalid filename", err)
	}
	return filename, nil
}
