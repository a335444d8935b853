package handlers

import (
	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/models"
)

// StatusForKind maps an error kind to the HTTP status returned to clients.
func StatusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindConfiguration:
		return fiber.StatusServiceUnavailable
	case apperrors.KindInvalidInput:
		return fiber.StatusBadRequest
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindMalformedResponse, apperrors.KindTemplate:
		return fiber.StatusUnprocessableEntity
	case apperrors.KindModelUnavailable, apperrors.KindRateLimited, apperrors.KindTransport:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	kind := apperrors.KindOf(err)
	return c.Status(StatusForKind(kind)).JSON(models.ErrorResponse{
		Error: err.Error(),
		Kind:  string(kind),
	})
}
