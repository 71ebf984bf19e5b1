package repositories

import (
	"context"
	"time"

	"anonlink/models"

	"gorm.io/gorm"
)

type GormFileRepository struct {
	db *gorm.DB
}

func NewGormFileRepository(db *gorm.DB) *GormFileRepository {
	return &GormFileRepository{db: db}
}

func (r *GormFileRepository) Create(_ context.Context, tx *gorm.DB, file *models.File) error {
	return useTx(r.db, tx).Create(file).Error
}

func (r *GormFileRepository) GetByID(_ context.Context, tx *gorm.DB, fileID string) (models.File, error) {
	var file models.File
	err := useTx(r.db, tx).Where("id = ?", fileID).First(&file).Error
	return file, err
}

func (r *GormFileRepository) GetByToken(_ context.Context, tx *gorm.DB, token string) (models.File, error) {
	var file models.File
	err := useTx(r.db, tx).Where("download_token = ?", token).First(&file).Error
	return file, err
}

func (r *GormFileRepository) CountByUser(_ context.Context, tx *gorm.DB, userID uint) (int64, error) {
	var total int64
	err := useTx(r.db, tx).Model(&models.File{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

func (r *GormFileRepository) ListByUser(_ context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error) {
	var files []models.File
	err := useTx(r.db, tx).
		Where("user_id = ?", in.UserID).
		Order("created_at DESC").
		Offset(in.Offset).Limit(in.Limit).
		Find(&files).Error
	return files, err
}

// ConsumeDownload is the compare-and-swap that keeps download_count inside
// the quota under concurrent downloads. The deleted_at guard comes from the
// gorm soft-delete scope, so a tombstoned row can never match.
func (r *GormFileRepository) ConsumeDownload(_ context.Context, tx *gorm.DB, fileID string, expectedCount int) error {
	result := useTx(r.db, tx).Model(&models.File{}).
		Where("id = ? AND download_count = ?", fileID, expectedCount).
		UpdateColumn("download_count", expectedCount+1)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *GormFileRepository) IncrementDownload(_ context.Context, tx *gorm.DB, fileID string) error {
	result := useTx(r.db, tx).Model(&models.File{}).
		Where("id = ?", fileID).
		UpdateColumn("download_count", gorm.Expr("download_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// ReplaceToken rotates the credential atomically: there is no instant where
// both tokens resolve, because the single conditional UPDATE either swaps the
// value or matches nothing.
func (r *GormFileRepository) ReplaceToken(_ context.Context, tx *gorm.DB, fileID string, oldToken string, newToken string) error {
	result := useTx(r.db, tx).Model(&models.File{}).
		Where("id = ? AND download_token = ?", fileID, oldToken).
		UpdateColumn("download_token", newToken)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *GormFileRepository) MarkDeleted(_ context.Context, tx *gorm.DB, fileID string) error {
	return useTx(r.db, tx).Where("id = ?", fileID).Delete(&models.File{}).Error
}

func (r *GormFileRepository) ListExpired(_ context.Context, tx *gorm.DB, now time.Time, limit int) ([]models.File, error) {
	var files []models.File
	err := useTx(r.db, tx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Limit(limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) ListExhausted(_ context.Context, tx *gorm.DB, limit int) ([]models.File, error) {
	var files []models.File
	err := useTx(r.db, tx).
		Where("max_downloads IS NOT NULL AND download_count >= max_downloads").
		Limit(limit).
		Find(&files).Error
	return files, err
}

func (r *GormFileRepository) PurgeTombstonesBefore(_ context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	result := useTx(r.db, tx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.File{})
	return result.RowsAffected, result.Error
}
