package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/models"
)

const (
	MIMETypePDF  = "application/pdf"
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
)

// EmptyTextWarning is attached to PDFs without a text layer (usually scans).
const EmptyTextWarning = "no text could be extracted from the PDF (scanned document?); the AI receives empty content"

// DefaultExtractTimeout bounds text extraction of a single PDF.
const DefaultExtractTimeout = 30 * time.Second

type DocumentIngestor interface {
	Ingest(ctx context.Context, filename string, data []byte) (*models.Document, error)
}

type IngestorOptions struct {
	ExtractTimeout time.Duration
}

type documentIngestor struct {
	extractTimeout time.Duration
}

func NewDocumentIngestor(opts IngestorOptions) DocumentIngestor {
	if opts.ExtractTimeout <= 0 {
		opts.ExtractTimeout = DefaultExtractTimeout
	}
	return &documentIngestor{extractTimeout: opts.ExtractTimeout}
}

func (d *documentIngestor) Ingest(ctx context.Context, filename string, data []byte) (*models.Document, error) {
	if len(data) == 0 {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "file %q is empty", filename)
	}

	mimeType := DetectMIMEType(filename, data)
	switch mimeType {
	case MIMETypePDF:
		return d.ingestPDF(ctx, filename, data)
	case MIMETypeJPEG, MIMETypePNG:
		return &models.Document{
			Filename: filename,
			Kind:     models.DocumentKindImage,
			MIMEType: mimeType,
			Data:     data,
			Encoded:  base64.StdEncoding.EncodeToString(data),
		}, nil
	default:
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "unsupported file type %q for %s (PDF, JPEG or PNG expected)", mimeType, filename)
	}
}

type pdfExtraction struct {
	text      string
	pageCount int
	err       error
}

// ingestPDF runs the extraction in its own goroutine. Some corrupt content
// streams make the parser loop forever or panic, so the document fails after
// the extraction deadline and the goroutine is abandoned.
func (d *documentIngestor) ingestPDF(ctx context.Context, filename string, data []byte) (*models.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, d.extractTimeout)
	defer cancel()

	done := make(chan pdfExtraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- pdfExtraction{err: apperrors.Newf(apperrors.KindInvalidInput, "PDF %s is corrupt: %v", filename, r)}
			}
		}()
		done <- extractPDFText(filename, data)
	}()

	var extracted pdfExtraction
	select {
	case extracted = <-done:
	case <-ctx.Done():
		log.Error().Str("file", filename).Dur("timeout", d.extractTimeout).Msg("❌ PDF extraction did not finish")
		return nil, apperrors.New(apperrors.KindInvalidInput,
			fmt.Sprintf("text extraction of PDF %s did not finish (corrupt file?)", filename), ctx.Err())
	}
	if extracted.err != nil {
		return nil, extracted.err
	}

	doc := &models.Document{
		Filename:  filename,
		Kind:      models.DocumentKindPDF,
		MIMEType:  MIMETypePDF,
		Text:      extracted.text,
		PageCount: extracted.pageCount,
	}

	if strings.TrimSpace(doc.Text) == "" {
		doc.Text = ""
		doc.Warning = EmptyTextWarning
		log.Warn().Str("file", filename).Msg("⚠️ " + EmptyTextWarning)
	}

	return doc, nil
}

func extractPDFText(filename string, data []byte) pdfExtraction {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return pdfExtraction{err: apperrors.New(apperrors.KindInvalidInput, fmt.Sprintf("failed to open PDF %s", filename), err)}
	}

	totalPage := r.NumPage()
	pages := make([]string, 0, totalPage)

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Str("file", filename).Int("page", pageIndex).Msg("⚠️ Skipping unreadable page")
			continue
		}
		pages = append(pages, text)
	}

	return pdfExtraction{text: strings.Join(pages, "\n"), pageCount: totalPage}
}

// DetectMIMEType sniffs the content and falls back to the file extension when
// the content is not conclusive.
func DetectMIMEType(filename string, data []byte) string {
	detected := mimetype.Detect(data)
	for _, known := range []string{MIMETypePDF, MIMETypeJPEG, MIMETypePNG} {
		if detected.Is(known) {
			return known
		}
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MIMETypePDF
	case ".jpg", ".jpeg":
		return MIMETypeJPEG
	case ".png":
		return MIMETypePNG
	}
	return detected.String()
}
