package repository

import (
	"fmt"

	"gorm.io/gorm"

	"gopherai-knowledge/internal/model"
)

type IngestRecordRepository struct {
	db *gorm.DB
}

func NewIngestRecordRepository(db *gorm.DB) *IngestRecordRepository {
	return &IngestRecordRepository{db: db}
}

func (r *IngestRecordRepository) Create(record *model.IngestRecord) error {
	if err := r.db.Create(record).Error; err != nil {
		return fmt.Errorf("create ingest record failed: %w", err)
	}
	return nil
}

func (r *IngestRecordRepository) ListRecent(limit int) ([]model.IngestRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var records []model.IngestRecord
	if err := r.db.Order("created_at DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list ingest records failed: %w", err)
	}
	return records, nil
}
