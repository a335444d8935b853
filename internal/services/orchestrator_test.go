package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/docx"
	"alfredoptarigan/cv-profiler/internal/models"
)

type recordingRecorder struct {
	results []*BatchResult
}

func (r *recordingRecorder) Record(result *BatchResult) {
	r.results = append(r.results, result)
}

func newTestOrchestrator(t *testing.T, ai AIClient) (BatchOrchestrator, *recordingRecorder) {
	t.Helper()

	renderer, err := NewTemplateRenderer("", BulletIndent)
	require.NoError(t, err)

	recorder := &recordingRecorder{}
	return NewBatchOrchestrator(OrchestratorDeps{
		AI:       ai,
		Renderer: renderer,
		Recorder: recorder,
	}), recorder
}

func replies(texts ...string) []transportReply {
	out := make([]transportReply, 0, len(texts))
	for _, text := range texts {
		out = append(out, transportReply{Text: text})
	}
	return out
}

func zipEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		entries[f.Name] = content
	}
	return entries
}

func keys(m map[string][]byte) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestProcessBatch_MalformedDocumentDoesNotStopBatch(t *testing.T) {
	ai := &sequenceAI{replies: replies(
		profileJSON("Jan Novák"),
		"Entschuldigung, ich kann das nicht.",
		"```json\n"+profileJSON("Eva Horváthová")+"\n```",
	)}
	orchestrator, recorder := newTestOrchestrator(t, ai)

	uploads := []models.Upload{
		{Filename: "jan.png", Data: pngBytes("1")},
		{Filename: "broken.png", Data: pngBytes("2")},
		{Filename: "eva.png", Data: pngBytes("3")},
	}

	result, err := orchestrator.ProcessBatch(context.Background(), "", uploads)
	require.NoError(t, err)
	require.Len(t, result.Documents, 3)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, ai.prompts, 3)

	broken := result.Documents[1]
	assert.Equal(t, models.StatusFailed, broken.Status)
	assert.Equal(t, models.StatusNormalized, broken.FailedStage)
	assert.Equal(t, apperrors.KindMalformedResponse, apperrors.KindOf(broken.Err))
	assert.Equal(t, 2, broken.Position)

	delivery, err := orchestrator.Package(result)
	require.NoError(t, err)
	assert.Equal(t, ArchiveName, delivery.Filename)
	assert.Equal(t, ArchiveMIMEType, delivery.ContentType)

	entries := zipEntries(t, delivery.Data)
	assert.Equal(t, []string{"Profil_Eva_Horváthová.docx", "Profil_Jan_Novák.docx"}, keys(entries))

	text, err := docx.ReadText(entries["Profil_Eva_Horváthová.docx"])
	require.NoError(t, err)
	assert.Contains(t, text, "Eva Horváthová")

	assert.Equal(t, models.StatusDelivered, result.Documents[0].Status)
	assert.Equal(t, models.StatusFailed, result.Documents[1].Status)
	assert.Equal(t, models.StatusDelivered, result.Documents[2].Status)

	require.Len(t, recorder.results, 1)
	assert.Same(t, result, recorder.results[0])
}

func TestProcessBatch_SingleDocumentDeliversDocx(t *testing.T) {
	ai := &sequenceAI{replies: replies(janProfileJSON)}
	orchestrator, recorder := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "Führerschein B", []models.Upload{
		{Filename: "cv.pdf", Data: buildPDF("Jan Novak, born 1990, warehouse worker")},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0].User, "Führerschein B")
	assert.Contains(t, ai.prompts[0].User, "Jan Novak, born 1990")
	assert.Nil(t, ai.prompts[0].Attachment)

	delivery, err := orchestrator.Package(result)
	require.NoError(t, err)
	assert.Equal(t, "Profil_Jan_Novák.docx", delivery.Filename)
	assert.Equal(t, docx.MIMEType, delivery.ContentType)

	text, err := docx.ReadText(delivery.Data)
	require.NoError(t, err)
	assert.Contains(t, text, "Jan Novák")
	assert.Contains(t, text, "      o  Kommissionierung\n      o  Staplerfahren")
	assert.Contains(t, text, "Slowakisch - Muttersprache")
	assert.Len(t, recorder.results, 1)
}

func TestProcessBatch_DuplicateCandidateNames(t *testing.T) {
	ai := &sequenceAI{replies: replies(janProfileJSON, janProfileJSON, janProfileJSON)}
	orchestrator, _ := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "", []models.Upload{
		{Filename: "a.png", Data: pngBytes("a")},
		{Filename: "b.png", Data: pngBytes("b")},
		{Filename: "c.png", Data: pngBytes("c")},
	})
	require.NoError(t, err)

	delivery, err := orchestrator.Package(result)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Profil_Jan_Novák.docx",
		"Profil_Jan_Novák_2.docx",
		"Profil_Jan_Novák_3.docx",
	}, keys(zipEntries(t, delivery.Data)))
}

func TestProcessBatch_FailedStages(t *testing.T) {
	rateLimit := apperrors.Newf(apperrors.KindRateLimited, "quota exhausted")
	ai := &sequenceAI{replies: []transportReply{{Err: rateLimit}}}
	orchestrator, _ := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "", []models.Upload{
		{Filename: "empty.pdf"},
		{Filename: "notes.txt", Data: []byte("just some text")},
		{Filename: "jan.png", Data: pngBytes("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Equal(t, 3, result.Failed)

	assert.Equal(t, models.StatusExtracted, result.Documents[0].FailedStage)
	assert.Equal(t, models.StatusExtracted, result.Documents[1].FailedStage)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(result.Documents[1].Err))
	assert.Equal(t, models.StatusAIResponded, result.Documents[2].FailedStage)
	assert.True(t, errors.Is(result.Documents[2].Err, rateLimit))
	assert.Len(t, ai.prompts, 1)

	_, err = orchestrator.Package(result)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	resp := result.Response()
	assert.Equal(t, "failed", resp.Documents[2].Status)
	assert.Equal(t, "ai_responded", resp.Documents[2].FailedStage)
	assert.Equal(t, "rate_limited", resp.Documents[2].ErrorKind)
}

func TestPackage_SingleFailedDocumentReturnsItsError(t *testing.T) {
	ai := &sequenceAI{replies: replies("{}")}
	orchestrator, recorder := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "", []models.Upload{{Filename: "a.png", Data: pngBytes("a")}})
	require.NoError(t, err)

	_, err = orchestrator.Package(result)
	assert.Equal(t, apperrors.KindMalformedResponse, apperrors.KindOf(err))
	assert.Len(t, recorder.results, 1)
}

func TestProcessBatch_EmptyPDFCarriesWarning(t *testing.T) {
	ai := &sequenceAI{replies: replies(profileJSON("Unbekannt"))}
	orchestrator, _ := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "", []models.Upload{
		{Filename: "scan.pdf", Data: buildPDF("")},
	})
	require.NoError(t, err)

	doc := result.Documents[0]
	assert.False(t, doc.Failed())
	assert.Contains(t, doc.Warning(), EmptyTextWarning)
	require.Len(t, ai.prompts, 1)
	assert.True(t, len(ai.prompts[0].User) > 0)
}

func TestProcessBatch_PolicyWarnings(t *testing.T) {
	profile := `{"personal":{"name":"Petr","nationality":"Tschechisch"},"experience":[],"education":[],"languages":["Englisch gut"],"skills":[]}`
	ai := &sequenceAI{replies: replies(profile)}
	orchestrator, _ := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "", []models.Upload{{Filename: "p.png", Data: pngBytes("p")}})
	require.NoError(t, err)

	doc := result.Documents[0]
	assert.False(t, doc.Failed())
	assert.Len(t, doc.Warnings, 2)
}

func TestProcessBatch_StalledPDFDoesNotStopBatch(t *testing.T) {
	renderer, err := NewTemplateRenderer("", BulletIndent)
	require.NoError(t, err)

	ai := &sequenceAI{replies: replies(profileJSON("Jan Novák"), profileJSON("Eva Horváthová"))}
	orchestrator := NewBatchOrchestrator(OrchestratorDeps{
		Ingestor: NewDocumentIngestor(IngestorOptions{ExtractTimeout: 200 * time.Millisecond}),
		AI:       ai,
		Renderer: renderer,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := orchestrator.ProcessBatch(ctx, "", []models.Upload{
		{Filename: "a.pdf", Data: buildPDF("Jan Novak")},
		{Filename: "b.pdf", Data: stallingPDF("Petr Svoboda")},
		{Filename: "c.pdf", Data: buildPDF("Eva Horvathova")},
	})
	require.NoError(t, err)
	require.NoError(t, ctx.Err())

	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, models.StatusExtracted, result.Documents[1].FailedStage)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(result.Documents[1].Err))
	assert.Equal(t, models.StatusRendered, result.Documents[2].Status)
	assert.Len(t, ai.prompts, 2)
}

func TestOrchestrator_ConfigurationErrors(t *testing.T) {
	unconfigured := NewBatchOrchestrator(OrchestratorDeps{})
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(unconfigured.Ready()))

	_, err := unconfigured.ProcessBatch(context.Background(), "", []models.Upload{{Filename: "a.png", Data: pngBytes("a")}})
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))

	_, err = unconfigured.StartSession(context.Background(), "", []models.Upload{{Filename: "a.png", Data: pngBytes("a")}})
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))

	missingKey := apperrors.New(apperrors.KindConfiguration, "GEMINI_API_KEY is required", nil)
	withErr := NewBatchOrchestrator(OrchestratorDeps{AIErr: missingKey})
	assert.Same(t, missingKey, withErr.Ready())

	orchestrator, _ := newTestOrchestrator(t, &sequenceAI{})
	_, err = orchestrator.ProcessBatch(context.Background(), "", nil)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))
}

func TestSessionFlow(t *testing.T) {
	ctx := context.Background()
	ai := &sequenceAI{replies: replies(profileJSON("Jan Novák"), "kaputt", profileJSON("Eva Horváthová"))}
	orchestrator, _ := newTestOrchestrator(t, ai)

	start, err := orchestrator.StartSession(ctx, "", []models.Upload{
		{Filename: "cv.png", Data: pngBytes("1")},
		{Filename: "broken.png", Data: pngBytes("2")},
		{Filename: "cv.png", Data: pngBytes("3")},
	})
	require.NoError(t, err)
	require.NotEmpty(t, start.SessionID)
	assert.Equal(t, 2, start.Result.Succeeded)
	assert.Equal(t, models.StatusNormalized, start.Result.Documents[0].Status)
	assert.Nil(t, start.Result.Documents[0].Output)

	session, err := orchestrator.Profiles(ctx, start.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cv.png", "cv_2.png"}, session.Order)
	assert.Equal(t, "Eva Horváthová", session.Profiles["cv_2.png"].Personal.Name)

	_, err = orchestrator.ProposeEdit(ctx, start.SessionID, "cv.png", `{"personal": "oops"}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidInput, apperrors.KindOf(err))

	unchanged, err := orchestrator.Profile(ctx, start.SessionID, "cv.png")
	require.NoError(t, err)
	assert.Equal(t, "Jan Novák", unchanged.Personal.Name)

	updated, err := orchestrator.ProposeEdit(ctx, start.SessionID, "cv.png", profileJSON("Jan Novák-Horák"))
	require.NoError(t, err)
	assert.Equal(t, "Jan Novák-Horák", updated.Personal.Name)

	_, err = orchestrator.ProposeEdit(ctx, start.SessionID, "missing.png", janProfileJSON)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	rendered, err := orchestrator.RenderSession(ctx, start.SessionID)
	require.NoError(t, err)
	require.Len(t, rendered.Documents, 2)
	assert.Equal(t, 2, rendered.Succeeded)
	assert.Equal(t, "Profil_Jan_Novák-Horák.docx", rendered.Documents[0].OutputName)

	delivery, err := orchestrator.Package(rendered)
	require.NoError(t, err)
	assert.Equal(t, []string{"Profil_Eva_Horváthová.docx", "Profil_Jan_Novák-Horák.docx"}, keys(zipEntries(t, delivery.Data)))

	require.NoError(t, orchestrator.EndSession(ctx, start.SessionID))
	_, err = orchestrator.Profiles(ctx, start.SessionID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

	_, err = orchestrator.RenderSession(ctx, start.SessionID)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestStartSession_NothingParsed(t *testing.T) {
	ai := &sequenceAI{replies: replies("nope")}
	orchestrator, _ := newTestOrchestrator(t, ai)

	start, err := orchestrator.StartSession(context.Background(), "", []models.Upload{{Filename: "a.png", Data: pngBytes("a")}})
	require.NoError(t, err)
	assert.Empty(t, start.SessionID)
	assert.Equal(t, 1, start.Result.Failed)
}

func TestBatchRunFromResult(t *testing.T) {
	ai := &sequenceAI{replies: replies(janProfileJSON, "nope")}
	orchestrator, _ := newTestOrchestrator(t, ai)

	result, err := orchestrator.ProcessBatch(context.Background(), "", []models.Upload{
		{Filename: "a.png", Data: pngBytes("a")},
		{Filename: "b.png", Data: pngBytes("b")},
	})
	require.NoError(t, err)

	run := BatchRunFromResult(result)
	assert.Equal(t, result.ID, run.ID)
	assert.Equal(t, ModeBatch, run.Mode)
	assert.Equal(t, 2, run.Total)
	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	require.Len(t, run.Documents, 2)
	assert.Equal(t, models.StatusRendered, run.Documents[0].Status)
	assert.Equal(t, models.StatusNormalized, run.Documents[1].FailedStage)
	assert.Equal(t, string(apperrors.KindMalformedResponse), run.Documents[1].ErrorKind)
	assert.NotContains(t, run.Documents[1].ErrorMessage, "Jan")
}

func TestProcessBatch_JanNovakExample(t *testing.T) {
	reply := `{
  "personal": {"name": "Jan Novák", "birth_date": "1990", "nationality": "Slowakisch", "gender": "Mann ♂"},
  "experience": [{"title": "Lagerarbeiter", "company": "Acme s.r.o.", "period": "2015 - 2020", "details": []}],
  "education": [],
  "languages": ["Slowakisch - Muttersprache"],
  "skills": ["Führerschein Klasse B"]
}`
	ai := &sequenceAI{replies: replies("```json\n" + reply + "\n```")}
	orchestrator, _ := newTestOrchestrator(t, ai)

	pdf := buildPDF(`Jan Nov\341k, born 1990, worked at Acme s.r.o. as warehouse worker 2015-2020`)
	result, err := orchestrator.ProcessBatch(context.Background(), "add driver's license category B", []models.Upload{
		{Filename: "jan.pdf", Data: pdf},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	require.Len(t, ai.prompts, 1)
	assert.Contains(t, ai.prompts[0].User, "add driver's license category B")
	assert.Contains(t, ai.prompts[0].User, "Jan Novák, born 1990, worked at Acme s.r.o.")

	profile := result.Documents[0].Profile
	assert.Equal(t, "Jan Novák", profile.Personal.Name)
	assert.Equal(t, models.GenderMale, profile.Personal.Gender)
	require.Len(t, profile.Experience, 1)
	assert.Contains(t, profile.Experience[0].Company, "Acme s.r.o.")
	assert.Contains(t, profile.Skills, "Führerschein Klasse B")

	delivery, err := orchestrator.Package(result)
	require.NoError(t, err)
	assert.Equal(t, "Profil_Jan_Novák.docx", delivery.Filename)
}
