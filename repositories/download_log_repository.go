package repositories

import (
	"context"

	"anonlink/models"

	"gorm.io/gorm"
)

type GormDownloadLogRepository struct {
	db *gorm.DB
}

func NewGormDownloadLogRepository(db *gorm.DB) *GormDownloadLogRepository {
	return &GormDownloadLogRepository{db: db}
}

func (r *GormDownloadLogRepository) Create(_ context.Context, tx *gorm.DB, entry *models.DownloadLog) error {
	return useTx(r.db, tx).Create(entry).Error
}

func (r *GormDownloadLogRepository) CountByFile(_ context.Context, tx *gorm.DB, fileID string) (int64, error) {
	var count int64
	err := useTx(r.db, tx).Model(&models.DownloadLog{}).
		Where("file_id = ?", fileID).Count(&count).Error
	return count, err
}
