package services

import (
	"github.com/rs/zerolog/log"

	"alfredoptarigan/cv-profiler/internal/apperrors"
	"alfredoptarigan/cv-profiler/internal/models"
	"alfredoptarigan/cv-profiler/internal/repositories"
)

// RunRecorder keeps an audit trail of batch outcomes.
type RunRecorder interface {
	Record(result *BatchResult)
}

type runRecorder struct {
	repo repositories.BatchRunRepository
}

// NewRunRecorder records through repo, or does nothing when repo is nil.
func NewRunRecorder(repo repositories.BatchRunRepository) RunRecorder {
	if repo == nil {
		return nopRunRecorder{}
	}
	return &runRecorder{repo: repo}
}

// Record stores counts and per-file outcomes. A failure is logged and never
// affects the delivery.
func (r *runRecorder) Record(result *BatchResult) {
	if result == nil {
		return
	}

	run := BatchRunFromResult(result)
	if err := r.repo.Create(run); err != nil {
		log.Warn().Err(err).Str("batch_id", result.ID.String()).Msg("⚠️ Failed to record batch run")
		return
	}
	log.Debug().Str("batch_id", run.ID.String()).Msg("💾 Batch run recorded")
}

// BatchRunFromResult maps a result to run-log rows. Profile content stays out.
func BatchRunFromResult(result *BatchResult) *models.BatchRun {
	run := &models.BatchRun{
		ID:        result.ID,
		Mode:      result.Mode,
		Total:     len(result.Documents),
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Documents: make([]models.BatchDocument, 0, len(result.Documents)),
	}
	for _, doc := range result.Documents {
		row := models.BatchDocument{
			Position:    doc.Position,
			Filename:    doc.Filename,
			Status:      doc.Status,
			FailedStage: doc.FailedStage,
			Warning:     doc.Warning(),
		}
		if doc.Err != nil {
			row.ErrorKind = string(apperrors.KindOf(doc.Err))
			row.ErrorMessage = doc.Err.Error()
		}
		run.Documents = append(run.Documents, row)
	}
	return run
}

type nopRunRecorder struct{}

func (nopRunRecorder) Record(*BatchResult) {}
