package models

type DocumentKind string

const (
	DocumentKindPDF   DocumentKind = "pdf"
	DocumentKindImage DocumentKind = "image"
)

// Document is an ingested upload ready for prompting. PDFs carry Text,
// images carry the raw bytes plus their base64 form for vision requests.
type Document struct {
	Filename  string
	Kind      DocumentKind
	MIMEType  string
	Text      string
	Data      []byte
	Encoded   string
	PageCount int
	Warning   string
}

// Upload is a file as received from the caller, before ingestion.
type Upload struct {
	Filename string
	Data     []byte
}

type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusExtracted   DocumentStatus = "extracted"
	StatusPrompted    DocumentStatus = "prompted"
	StatusAIResponded DocumentStatus = "ai_responded"
	StatusNormalized  DocumentStatus = "normalized"
	StatusRendered    DocumentStatus = "rendered"
	StatusDelivered   DocumentStatus = "delivered"
	StatusFailed      DocumentStatus = "failed"
)

func (s DocumentStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}
