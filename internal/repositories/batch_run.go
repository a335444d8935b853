package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/cv-profiler/internal/models"
)

type BatchRunRepository interface {
	Create(run *models.BatchRun) error
	FindByID(id uuid.UUID) (*models.BatchRun, error)
	FindRecent(limit int) ([]models.BatchRun, error)
}

type batchRunRepository struct {
	db *gorm.DB
}

func NewBatchRunRepository(db *gorm.DB) BatchRunRepository {
	return &batchRunRepository{db: db}
}

// Create stores the run together with its document rows.
func (r *batchRunRepository) Create(run *models.BatchRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	for i := range run.Documents {
		if run.Documents[i].ID == uuid.Nil {
			run.Documents[i].ID = uuid.New()
		}
		run.Documents[i].BatchRunID = run.ID
	}

	if err := r.db.Create(run).Error; err != nil {
		return fmt.Errorf("failed to create batch run: %w", err)
	}
	return nil
}

func (r *batchRunRepository) FindByID(id uuid.UUID) (*models.BatchRun, error) {
	var run models.BatchRun
	err := r.db.
		Preload("Documents", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("batch run not found: %w", err)
		}
		return nil, fmt.Errorf("failed to find batch run: %w", err)
	}
	return &run, nil
}

func (r *batchRunRepository) FindRecent(limit int) ([]models.BatchRun, error) {
	var runs []models.BatchRun
	err := r.db.
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find batch runs: %w", err)
	}
	return runs, nil
}
