package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/models"
	"alfredoptarigan/cv-profiler/internal/services"
)

const (
	HeaderBatchID        = "X-Batch-ID"
	HeaderBatchSucceeded = "X-Batch-Succeeded"
	HeaderBatchFailed    = "X-Batch-Failed"
	HeaderBatchReport    = "X-Batch-Report"
)

type UploadHandler struct {
	orchestrator services.BatchOrchestrator
	maxFileSize  int64
}

func NewUploadHandler(orchestrator services.BatchOrchestrator, maxFileSize int64) *UploadHandler {
	return &UploadHandler{
		orchestrator: orchestrator,
		maxFileSize:  maxFileSize,
	}
}

// HandleProfiles handles POST /profiles: one-shot batch, answered with the
// rendered document or a zip of all rendered documents.
func (h *UploadHandler) HandleProfiles(c *fiber.Ctx) error {
	if err := h.orchestrator.Ready(); err != nil {
		return respondError(c, err)
	}

	uploads, notes, err := readUploads(c, h.maxFileSize)
	if err != nil {
		return respondError(c, err)
	}

	result, err := h.orchestrator.ProcessBatch(c.UserContext(), notes, uploads)
	if err != nil {
		return respondError(c, err)
	}

	return deliver(c, h.orchestrator, result)
}

// deliver packages a result and streams it back. When nothing could be
// rendered the per-document errors are returned instead.
func deliver(c *fiber.Ctx, orchestrator services.BatchOrchestrator, result *services.BatchResult) error {
	delivery, err := orchestrator.Package(result)

	c.Set(HeaderBatchID, result.ID.String())
	c.Set(HeaderBatchSucceeded, strconv.Itoa(result.Succeeded))
	c.Set(HeaderBatchFailed, strconv.Itoa(result.Failed))
	if report, reportErr := batchReportHeader(result); reportErr == nil {
		c.Set(HeaderBatchReport, report)
	}

	if err != nil {
		if result.Succeeded == 0 {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
				"kind":  string(apperrors.KindOf(err)),
				"batch": result.Response(),
			})
		}
		return respondError(c, err)
	}

	c.Attachment(delivery.Filename)
	c.Set(fiber.HeaderContentType, delivery.ContentType)
	return c.Status(fiber.StatusOK).Send(delivery.Data)
}

// batchReportHeader encodes the per-document outcome as JSON for a response
// header. Everything outside ASCII is written as a \u escape so the value
// survives any header encoding.
func batchReportHeader(result *services.BatchResult) (string, error) {
	raw, err := json.Marshal(result.Response())
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, r := range string(raw) {
		switch {
		case r < 0x80:
			b.WriteRune(r)
		case r > 0xFFFF:
			r -= 0x10000
			fmt.Fprintf(&b, "\\u%04x\\u%04x", 0xD800+(r>>10), 0xDC00+(r&0x3FF))
		default:
			fmt.Fprintf(&b, "\\u%04x", r)
		}
	}
	return b.String(), nil
}

// readUploads reads the "files" parts and the "notes" field of a multipart form.
func readUploads(c *fiber.Ctx, maxFileSize int64) ([]models.Upload, string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, "", apperrors.New(apperrors.KindInvalidInput, "failed to parse multipart form", err)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return nil, "", apperrors.New(apperrors.KindInvalidInput, "no files uploaded, send PDF, JPEG or PNG files as 'files'", nil)
	}

	uploads := make([]models.Upload, 0, len(files))
	for _, fh := range files {
		if maxFileSize > 0 && fh.Size > maxFileSize {
			return nil, "", apperrors.Newf(apperrors.KindInvalidInput, "file %s too large. Max size: %d bytes", fh.Filename, maxFileSize)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open uploaded file %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to read uploaded file %s: %w", fh.Filename, err)
		}

		uploads = append(uploads, models.Upload{
			Filename: fh.Filename,
			Data:     data,
		})
	}

	notes := ""
	if values := form.Value["notes"]; len(values) > 0 {
		notes = values[0]
	}
	return uploads, notes, nil
}
