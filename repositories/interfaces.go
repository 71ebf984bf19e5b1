package repositories

import (
	"context"
	"time"

	"anonlink/models"

	"gorm.io/gorm"
)

type TxManager interface {
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type UserRepository interface {
	CountByUsername(ctx context.Context, username string) (int64, error)
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (models.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID uint) (models.User, error)
	AddStorageUsed(ctx context.Context, tx *gorm.DB, userID uint, delta int64) error
	SubStorageUsed(ctx context.Context, tx *gorm.DB, userID uint, delta int64) error
}

type ListFilesInput struct {
	UserID uint
	Offset int
	Limit  int
}

// FileRepository is the metadata ledger for shared objects. Reads are scoped
// to live rows: a tombstoned object is indistinguishable from one that never
// existed. All contended mutations are conditional updates; callers detect a
// lost race through ErrConflict, never through in-process locks.
type FileRepository interface {
	Create(ctx context.Context, tx *gorm.DB, file *models.File) error
	GetByID(ctx context.Context, tx *gorm.DB, fileID string) (models.File, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (models.File, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uint) (int64, error)
	ListByUser(ctx context.Context, tx *gorm.DB, in ListFilesInput) ([]models.File, error)

	// ConsumeDownload increments the download counter only if it still
	// equals expectedCount and the row is live. Returns ErrConflict when
	// another downloader won the race.
	ConsumeDownload(ctx context.Context, tx *gorm.DB, fileID string, expectedCount int) error
	// IncrementDownload increments unconditionally; used for objects
	// without a download quota, where the count is reporting only.
	IncrementDownload(ctx context.Context, tx *gorm.DB, fileID string) error
	// ReplaceToken swaps the download token only if oldToken still
	// matches; ErrConflict signals a concurrent rotation or delete.
	ReplaceToken(ctx context.Context, tx *gorm.DB, fileID string, oldToken string, newToken string) error
	// MarkDeleted tombstones the row. Idempotent.
	MarkDeleted(ctx context.Context, tx *gorm.DB, fileID string) error

	ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]models.File, error)
	ListExhausted(ctx context.Context, tx *gorm.DB, limit int) ([]models.File, error)
	PurgeTombstonesBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type DownloadLogRepository interface {
	Create(ctx context.Context, tx *gorm.DB, entry *models.DownloadLog) error
	CountByFile(ctx context.Context, tx *gorm.DB, fileID string) (int64, error)
}

// RateLimitRepository throttles unauthenticated token lookups per client.
type RateLimitRepository interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Container struct {
	TxManager    TxManager
	Users        UserRepository
	Files        FileRepository
	DownloadLogs DownloadLogRepository
	RateLimit    RateLimitRepository
}
