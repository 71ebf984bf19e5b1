package services

import (
	"context"
	"errors"
	"log"
	"time"

	"anonlink/config"
	"anonlink/models"
	"anonlink/repositories"
	"anonlink/storage"

	"gorm.io/gorm"
)

// CleanupResult summarizes one reaper pass.
type CleanupResult struct {
	Expired   int
	Exhausted int
	Purged    int64
	Errors    int
}

// CleanupService reclaims storage for expired (and optionally exhausted)
// objects. It is not load-bearing for correctness: the access gate rejects
// expired objects on every read regardless of reaper timing.
type CleanupService interface {
	Start(ctx context.Context)
	RunOnce(ctx context.Context) CleanupResult
	Hint(fileID string)
}

type cleanupService struct {
	txManager TxManager
	users     repositories.UserRepository
	files     repositories.FileRepository
	store     storage.BlobStore
	hints     chan string
}

func NewCleanupService(
	txManager TxManager,
	users repositories.UserRepository,
	files repositories.FileRepository,
	store storage.BlobStore,
) CleanupService {
	return &cleanupService{
		txManager: txManager,
		users:     users,
		files:     files,
		store:     store,
		hints:     make(chan string, 256),
	}
}

// Hint queues an object for the next pass. Drops on a full queue; the
// periodic scan will find the object anyway.
func (s *cleanupService) Hint(fileID string) {
	select {
	case s.hints <- fileID:
	default:
	}
}

func (s *cleanupService) Start(ctx context.Context) {
	interval := time.Duration(config.AppConfig.Cleanup.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				result := s.RunOnce(ctx)
				if result.Expired > 0 || result.Exhausted > 0 || result.Purged > 0 {
					log.Printf("cleanup pass: %d expired, %d exhausted, %d tombstones purged, %d errors",
						result.Expired, result.Exhausted, result.Purged, result.Errors)
				}
			}
		}
	}()
}

// RunOnce performs one idempotent pass; safe to overlap with live downloads
// because every reclaim goes through the same tombstone-then-blob ordering
// as an owner delete.
func (s *cleanupService) RunOnce(ctx context.Context) CleanupResult {
	cfg := config.AppConfig.Cleanup
	var result CleanupResult

	s.drainHints(ctx, &result)

	expired, err := s.files.ListExpired(ctx, nil, time.Now(), cfg.BatchSize)
	if err != nil {
		log.Printf("warning: failed to list expired files: %v", err)
		result.Errors++
	} else {
		for i := range expired {
			if s.reap(ctx, expired[i]) {
				result.Expired++
			} else {
				result.Errors++
			}
		}
	}

	if config.AppConfig.Share.DeleteOnExhaust {
		exhausted, err := s.files.ListExhausted(ctx, nil, cfg.BatchSize)
		if err != nil {
			log.Printf("warning: failed to list exhausted files: %v", err)
			result.Errors++
		} else {
			for i := range exhausted {
				if s.reap(ctx, exhausted[i]) {
					result.Exhausted++
				} else {
					result.Errors++
				}
			}
		}
	}

	cutoff := time.Now().AddDate(0, 0, -cfg.TombstoneRetentionDays)
	purged, err := s.files.PurgeTombstonesBefore(ctx, nil, cutoff)
	if err != nil {
		log.Printf("warning: failed to purge tombstones: %v", err)
		result.Errors++
	} else {
		result.Purged = purged
	}

	return result
}

func (s *cleanupService) drainHints(ctx context.Context, result *CleanupResult) {
	for {
		select {
		case fileID := <-s.hints:
			file, err := s.files.GetByID(ctx, nil, fileID)
			if err != nil {
				// Already tombstoned or gone; nothing to do.
				continue
			}
			if !file.IsExpired(time.Now()) && !(config.AppConfig.Share.DeleteOnExhaust && file.IsExhausted()) {
				continue
			}
			if s.reap(ctx, file) {
				result.Expired++
			} else {
				result.Errors++
			}
		default:
			return
		}
	}
}

// reap tombstones the row first, then removes the blob. The tombstone must
// be visible before content disappears so no valid grant ever points at a
// missing blob.
func (s *cleanupService) reap(ctx context.Context, file models.File) bool {
	err := s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.MarkDeleted(ctx, tx, file.ID); err != nil {
			return err
		}
		return s.users.SubStorageUsed(ctx, tx, file.UserID, file.FileSize)
	})
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("warning: failed to tombstone file %s: %v", file.ID, err)
		return false
	}

	if err := s.store.Delete(ctx, file.StorageKey); err != nil {
		log.Printf("warning: failed to delete blob %s: %v", file.StorageKey, err)
	}
	if file.ThumbnailPath != "" {
		if err := s.store.Delete(ctx, file.ThumbnailPath); err != nil {
			log.Printf("warning: failed to delete thumbnail %s: %v", file.ThumbnailPath, err)
		}
	}
	return true
}
