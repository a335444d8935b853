package services

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/docx"
	"alfredoptarigan/cv-profiler/internal/models"
)

const (
	ModeBatch   = "batch"
	ModeSession = "session"

	ArchiveName     = "Kandidatenprofile.zip"
	ArchiveMIMEType = "application/zip"
)

// DocumentResult is the outcome of one upload. FailedStage names the stage
// that could not be reached when Status is failed.
type DocumentResult struct {
	Position    int
	Filename    string
	Status      models.DocumentStatus
	FailedStage models.DocumentStatus
	Err         error
	Warnings    []string
	Profile     *models.CandidateProfile
	Output      []byte
	OutputName  string
}

func (r *DocumentResult) advance(status models.DocumentStatus) {
	r.Status = status
}

func (r *DocumentResult) fail(stage models.DocumentStatus, err error) {
	r.Status = models.StatusFailed
	r.FailedStage = stage
	r.Err = err
}

func (r *DocumentResult) Failed() bool {
	return r.Status == models.StatusFailed
}

func (r *DocumentResult) Warning() string {
	return strings.Join(r.Warnings, "; ")
}

func (r *DocumentResult) Response() models.DocumentResponse {
	resp := models.DocumentResponse{
		Filename:    r.Filename,
		Status:      string(r.Status),
		FailedStage: string(r.FailedStage),
		Warning:     r.Warning(),
		OutputName:  r.OutputName,
	}
	if r.Err != nil {
		resp.ErrorKind = string(apperrors.KindOf(r.Err))
		resp.Error = r.Err.Error()
	}
	return resp
}

type BatchResult struct {
	ID        uuid.UUID
	Mode      string
	Documents []*DocumentResult
	Succeeded int
	Failed    int
}

func (b *BatchResult) Response() models.BatchResponse {
	resp := models.BatchResponse{
		Succeeded: b.Succeeded,
		Failed:    b.Failed,
		Documents: make([]models.DocumentResponse, 0, len(b.Documents)),
	}
	for _, doc := range b.Documents {
		resp.Documents = append(resp.Documents, doc.Response())
	}
	return resp
}

func (b *BatchResult) count() {
	b.Succeeded, b.Failed = 0, 0
	for _, doc := range b.Documents {
		if doc.Failed() {
			b.Failed++
		} else {
			b.Succeeded++
		}
	}
}

// Delivery is the file handed back to the caller.
type Delivery struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SessionStart reports the parse outcome of every upload of a new session.
type SessionStart struct {
	SessionID string
	Result    *BatchResult
}

type BatchOrchestrator interface {
	Ready() error
	ProcessBatch(ctx context.Context, notes string, uploads []models.Upload) (*BatchResult, error)
	Package(result *BatchResult) (*Delivery, error)

	StartSession(ctx context.Context, notes string, uploads []models.Upload) (*SessionStart, error)
	Profiles(ctx context.Context, sessionID string) (*Session, error)
	Profile(ctx context.Context, sessionID, filename string) (*models.CandidateProfile, error)
	ProposeEdit(ctx context.Context, sessionID, filename, text string) (*models.CandidateProfile, error)
	RenderSession(ctx context.Context, sessionID string) (*BatchResult, error)
	EndSession(ctx context.Context, sessionID string) error
}

type OrchestratorDeps struct {
	Ingestor   DocumentIngestor
	Prompts    *PromptBuilder
	AI         AIClient
	AIErr      error
	Normalizer ResponseNormalizer
	Renderer   TemplateRenderer
	Policy     *LanguagePolicy
	Sessions   SessionStore
	Recorder   RunRecorder
}

type batchOrchestrator struct {
	ingestor   DocumentIngestor
	prompts    *PromptBuilder
	ai         AIClient
	aiErr      error
	normalizer ResponseNormalizer
	renderer   TemplateRenderer
	policy     *LanguagePolicy
	sessions   SessionStore
	recorder   RunRecorder
}

func NewBatchOrchestrator(deps OrchestratorDeps) BatchOrchestrator {
	o := &batchOrchestrator{
		ingestor:   deps.Ingestor,
		prompts:    deps.Prompts,
		ai:         deps.AI,
		aiErr:      deps.AIErr,
		normalizer: deps.Normalizer,
		renderer:   deps.Renderer,
		policy:     deps.Policy,
		sessions:   deps.Sessions,
		recorder:   deps.Recorder,
	}
	if o.ingestor == nil {
		o.ingestor = NewDocumentIngestor(IngestorOptions{})
	}
	if o.policy == nil {
		o.policy = DefaultLanguagePolicy()
	}
	if o.prompts == nil {
		o.prompts = NewPromptBuilder(o.policy)
	}
	if o.normalizer == nil {
		o.normalizer = NewResponseNormalizer()
	}
	if o.sessions == nil {
		o.sessions = NewMemorySessionStore(0)
	}
	if o.recorder == nil {
		o.recorder = NewRunRecorder(nil)
	}
	if o.ai == nil && o.aiErr == nil {
		o.aiErr = apperrors.New(apperrors.KindConfiguration, "no AI client configured", nil)
	}
	if o.renderer == nil && o.aiErr == nil {
		o.aiErr = apperrors.New(apperrors.KindConfiguration, "no document template configured", nil)
	}
	return o
}

// Ready reports the configuration problem that blocks all processing, if any.
func (o *batchOrchestrator) Ready() error {
	return o.aiErr
}

// ProcessBatch runs every upload through the pipeline, one after the other.
// A failing document never stops the rest of the batch.
func (o *batchOrchestrator) ProcessBatch(ctx context.Context, notes string, uploads []models.Upload) (*BatchResult, error) {
	if err := o.Ready(); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, "no files uploaded", nil)
	}

	result := &BatchResult{ID: uuid.New(), Mode: ModeBatch}
	start := time.Now()
	log.Info().Str("batch_id", result.ID.String()).Int("documents", len(uploads)).Msg("🔄 Starting batch")

	for i, upload := range uploads {
		doc := o.process(ctx, notes, upload, i+1, len(uploads), true)
		result.Documents = append(result.Documents, doc)
	}

	result.count()
	log.Info().
		Str("batch_id", result.ID.String()).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("📊 Batch finished")
	return result, nil
}

func (o *batchOrchestrator) process(ctx context.Context, notes string, upload models.Upload, position, total int, render bool) *DocumentResult {
	res := &DocumentResult{
		Position: position,
		Filename: upload.Filename,
		Status:   models.StatusUploaded,
	}
	logger := log.With().Str("file", upload.Filename).Int("position", position).Int("total", total).Logger()

	// Step 1: Extract
	logger.Info().Msg("📄 Extracting document...")
	doc, err := o.ingestor.Ingest(ctx, upload.Filename, upload.Data)
	if err != nil {
		logger.Error().Err(err).Msg("❌ Extraction failed")
		res.fail(models.StatusExtracted, err)
		return res
	}
	res.advance(models.StatusExtracted)
	if doc.Warning != "" {
		res.Warnings = append(res.Warnings, doc.Warning)
	}

	// Step 2: Prompt
	prompt := o.prompts.Build(notes, doc)
	res.advance(models.StatusPrompted)

	// Step 3: AI
	logger.Info().Msg("🤖 Generating profile with AI...")
	raw, err := o.ai.Generate(ctx, prompt)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(apperrors.KindOf(err))).Msg("❌ AI request failed")
		res.fail(models.StatusAIResponded, err)
		return res
	}
	res.advance(models.StatusAIResponded)

	// Step 4: Normalize
	profile, err := o.normalizer.Normalize(raw)
	if err != nil {
		logger.Error().Err(err).Msg("❌ Failed to parse AI response")
		res.fail(models.StatusNormalized, err)
		return res
	}
	res.Profile = profile
	res.Warnings = append(res.Warnings, o.policy.Review(profile)...)
	res.advance(models.StatusNormalized)

	if !render {
		logger.Info().Str("candidate", profile.Personal.Name).Msg("✅ Profile parsed")
		return res
	}

	// Step 5: Render
	o.render(res)
	if res.Failed() {
		logger.Error().Err(res.Err).Msg("❌ Rendering failed")
		return res
	}
	logger.Info().Str("output", res.OutputName).Msg("✅ Profile rendered")
	return res
}

func (o *batchOrchestrator) render(res *DocumentResult) {
	out, err := o.renderer.Render(res.Profile)
	if err != nil {
		res.fail(models.StatusRendered, err)
		return
	}
	res.Output = out
	res.OutputName = OutputFilename(res.Profile)
	res.advance(models.StatusRendered)
}

// Package builds the delivery: the document itself for a single upload, a zip
// of every rendered document otherwise. The run is recorded either way.
func (o *batchOrchestrator) Package(result *BatchResult) (*Delivery, error) {
	if result == nil || len(result.Documents) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, "nothing to package", nil)
	}
	defer o.recorder.Record(result)

	if len(result.Documents) == 1 {
		doc := result.Documents[0]
		if doc.Failed() || doc.Output == nil {
			return nil, packagingError(doc)
		}
		doc.advance(models.StatusDelivered)
		return &Delivery{
			Filename:    doc.OutputName,
			ContentType: docx.MIMEType,
			Data:        doc.Output,
		}, nil
	}

	if result.Succeeded == 0 {
		return nil, apperrors.Newf(apperrors.KindInvalidInput, "none of the %d documents could be processed", len(result.Documents))
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]bool, len(result.Documents))

	for _, doc := range result.Documents {
		if doc.Failed() || doc.Output == nil {
			continue
		}
		name := uniqueName(used, doc.OutputName)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := w.Write(doc.Output); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
		doc.OutputName = name
		doc.advance(models.StatusDelivered)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	log.Info().Str("batch_id", result.ID.String()).Int("entries", result.Succeeded).Msg("📦 Archive ready")
	return &Delivery{
		Filename:    ArchiveName,
		ContentType: ArchiveMIMEType,
		Data:        buf.Bytes(),
	}, nil
}

func packagingError(doc *DocumentResult) error {
	if doc.Err != nil {
		return doc.Err
	}
	return apperrors.Newf(apperrors.KindTemplate, "%s was not rendered", doc.Filename)
}

// uniqueName appends _2, _3, ... before the extension until name is unused.
func uniqueName(used map[string]bool, name string) string {
	candidate := name
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	used[candidate] = true
	return candidate
}

// StartSession parses every upload without rendering and keeps the profiles
// under a new session, keyed by the original filename.
func (o *batchOrchestrator) StartSession(ctx context.Context, notes string, uploads []models.Upload) (*SessionStart, error) {
	if err := o.Ready(); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, apperrors.New(apperrors.KindInvalidInput, "no files uploaded", nil)
	}

	result := &BatchResult{ID: uuid.New(), Mode: ModeSession}
	session := &Session{
		ID:        uuid.New().String(),
		Profiles:  make(map[string]*models.CandidateProfile),
		CreatedAt: time.Now(),
	}
	used := make(map[string]bool, len(uploads))

	for i, upload := range uploads {
		doc := o.process(ctx, notes, upload, i+1, len(uploads), false)
		result.Documents = append(result.Documents, doc)
		if doc.Failed() {
			continue
		}

		key := uniqueName(used, upload.Filename)
		doc.Filename = key
		session.Order = append(session.Order, key)
		session.Profiles[key] = doc.Profile
	}
	result.count()

	if result.Succeeded == 0 {
		log.Warn().Int("documents", len(uploads)).Msg("⚠️ No profile could be parsed, session not created")
		return &SessionStart{Result: result}, nil
	}

	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Str("session_id", session.ID).Int("profiles", len(session.Order)).Msg("✅ Session started")
	return &SessionStart{SessionID: session.ID, Result: result}, nil
}

func (o *batchOrchestrator) Profiles(ctx context.Context, sessionID string) (*Session, error) {
	return o.sessions.Get(ctx, sessionID)
}

func (o *batchOrchestrator) Profile(ctx context.Context, sessionID, filename string) (*models.CandidateProfile, error) {
	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	profile, ok := session.Profiles[filename]
	if !ok {
		return nil, profileNotFound(sessionID, filename)
	}
	return profile, nil
}

// ProposeEdit replaces a stored profile with an edited one. A malformed edit
// is rejected and the stored profile stays as it was.
func (o *batchOrchestrator) ProposeEdit(ctx context.Context, sessionID, filename, text string) (*models.CandidateProfile, error) {
	if _, err := o.Profile(ctx, sessionID, filename); err != nil {
		return nil, err
	}

	profile, err := o.normalizer.ParseEdited(text)
	if err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("file", filename).Msg("⚠️ Edit rejected, keeping previous profile")
		return nil, err
	}

	if err := o.sessions.PutProfile(ctx, sessionID, filename, profile); err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID).Str("file", filename).Msg("✅ Profile updated")
	return profile, nil
}

// RenderSession renders every stored profile in upload order.
func (o *batchOrchestrator) RenderSession(ctx context.Context, sessionID string) (*BatchResult, error) {
	if o.renderer == nil {
		return nil, o.Ready()
	}

	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{ID: uuid.New(), Mode: ModeSession}
	for i, filename := range session.Order {
		doc := &DocumentResult{
			Position: i + 1,
			Filename: filename,
			Status:   models.StatusNormalized,
			Profile:  session.Profiles[filename],
		}
		o.render(doc)
		if doc.Failed() {
			log.Error().Err(doc.Err).Str("session_id", sessionID).Str("file", filename).Msg("❌ Rendering failed")
		}
		result.Documents = append(result.Documents, doc)
	}
	result.count()

	log.Info().Str("session_id", sessionID).Int("succeeded", result.Succeeded).Int("failed", result.Failed).Msg("📊 Session rendered")
	return result, nil
}

func (o *batchOrchestrator) EndSession(ctx context.Context, sessionID string) error {
	if err := o.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	log.Info().Str("session_id", sessionID).Msg("🗑️ Session ended")
	return nil
}
