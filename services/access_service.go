package services

import (
	"context"
	"errors"
	"io"
	"time"

	"anonlink/config"
	"anonlink/models"
	"anonlink/repositories"
	"anonlink/storage"

	"gorm.io/gorm"
)

// ClientInfo identifies the anonymous downloader for access logging.
type ClientInfo struct {
	IP        string
	UserAgent string
}

type PublicFileInfo struct {
	OriginalName  string     `json:"original_filename"`
	FileSize      int64      `json:"file_size"`
	MimeType      string     `json:"mime_type"`
	DownloadCount int        `json:"download_count"`
	MaxDownloads  *int       `json:"max_downloads,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	HasThumbnail  bool       `json:"has_thumbnail"`
}

// ReapHinter receives best-effort notifications about objects worth
// reclaiming. Implementations must never block the caller.
type ReapHinter interface {
	Hint(fileID string)
}

// AccessService is the public gate: the token is the only credential, and
// resolving a download and consuming one unit of quota happen as a single
// conditional step at the ledger.
type AccessService interface {
	PublicInfo(ctx context.Context, token string) (PublicFileInfo, error)
	ResolveAndConsume(ctx context.Context, token string, client ClientInfo) (models.File, io.ReadCloser, error)
	PublicThumbnail(ctx context.Context, token string) (models.File, io.ReadCloser, error)
}

type accessService struct {
	files  repositories.FileRepository
	logs   repositories.DownloadLogRepository
	store  storage.BlobStore
	reaper ReapHinter
}

func NewAccessService(
	files repositories.FileRepository,
	logs repositories.DownloadLogRepository,
	store storage.BlobStore,
	reaper ReapHinter,
) AccessService {
	return &accessService{files: files, logs: logs, store: store, reaper: reaper}
}

func (s *accessService) PublicInfo(ctx context.Context, token string) (PublicFileInfo, error) {
	file, err := s.resolveLive(ctx, token)
	if err != nil {
		return PublicFileInfo{}, err
	}

	return PublicFileInfo{
		OriginalName:  file.OriginalName,
		FileSize:      file.FileSize,
		MimeType:      file.MimeType,
		DownloadCount: file.DownloadCount,
		MaxDownloads:  file.MaxDownloads,
		ExpiresAt:     file.ExpiresAt,
		HasThumbnail:  file.ThumbnailPath != "",
	}, nil
}

// ResolveAndConsume grants at most one download per call and durably counts
// it before any content is streamed. The optimistic retry loop never blocks
// concurrent downloaders; a loser of the race simply re-reads and re-checks
// the quota.
func (s *accessService) ResolveAndConsume(ctx context.Context, token string, client ClientInfo) (models.File, io.ReadCloser, error) {
	file, err := s.resolveLive(ctx, token)
	if err != nil {
		return models.File{}, nil, err
	}

	if file.MaxDownloads != nil {
		file, err = s.consumeQuota(ctx, file)
	} else {
		err = s.files.IncrementDownload(ctx, nil, file.ID)
		if errors.Is(err, repositories.ErrConflict) {
			// The row was tombstoned between the read and the update.
			return models.File{}, nil, newAppError(KindNotFound, "file not found", nil)
		}
		if err == nil {
			file.DownloadCount++
		}
	}
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return models.File{}, nil, err
		}
		return models.File{}, nil, newAppError(KindInternal, "failed to record download", err)
	}

	rc, err := s.store.Open(ctx, file.StorageKey)
	if err != nil {
		// The grant is already counted; a missing blob is a storage
		// fault, not a quota refund.
		return models.File{}, nil, newAppError(KindStorage, "failed to open file content", err)
	}

	s.logAccess(ctx, file.ID, "download", client)
	return file, rc, nil
}

func (s *accessService) PublicThumbnail(ctx context.Context, token string) (models.File, io.ReadCloser, error) {
	file, err := s.resolveLive(ctx, token)
	if err != nil {
		return models.File{}, nil, err
	}
	if file.ThumbnailPath == "" {
		return models.File{}, nil, newAppError(KindNotFound, "no thumbnail for this file", nil)
	}

	rc, err := s.store.Open(ctx, file.ThumbnailPath)
	if err != nil {
		return models.File{}, nil, newAppError(KindStorage, "failed to open thumbnail", err)
	}
	return file, rc, nil
}

// resolveLive maps a token to a live, unexpired object. Tombstoned rows are
// filtered by the ledger itself; expiry is enforced here on every read, so
// the reaper is never load-bearing for the expiry guarantee.
func (s *accessService) resolveLive(ctx context.Context, token string) (models.File, error) {
	if token == "" {
		return models.File{}, newAppError(KindNotFound, "file not found", nil)
	}

	file, err := s.files.GetByToken(ctx, nil, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, newAppError(KindNotFound, "file not found", nil)
		}
		return models.File{}, newAppError(KindInternal, "failed to query file", err)
	}

	if file.IsExpired(time.Now()) {
		if s.reaper != nil {
			s.reaper.Hint(file.ID)
		}
		return models.File{}, newAppError(KindExpired, "this link has expired", nil)
	}
	return file, nil
}

// consumeQuota runs the compare-and-swap loop from the quota check to the
// increment. Bounded retries: heavy contention surfaces as Conflict rather
// than an unbounded spin.
func (s *accessService) consumeQuota(ctx context.Context, file models.File) (models.File, error) {
	retries := config.AppConfig.Share.ConsumeRetries

	for attempt := 0; attempt <= retries; attempt++ {
		if file.DownloadCount >= *file.MaxDownloads {
			return models.File{}, newAppError(KindQuotaExceeded, "download limit reached", nil)
		}

		err := s.files.ConsumeDownload(ctx, nil, file.ID, file.DownloadCount)
		if err == nil {
			file.DownloadCount++
			return file, nil
		}
		if !errors.Is(err, repositories.ErrConflict) {
			return models.File{}, newAppError(KindInternal, "failed to consume download quota", err)
		}

		// Lost the race: re-read and re-check against the fresh count.
		file, err = s.files.GetByID(ctx, nil, file.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.File{}, newAppError(KindNotFound, "file not found", nil)
			}
			return models.File{}, newAppError(KindInternal, "failed to query file", err)
		}
		if file.IsExpired(time.Now()) {
			return models.File{}, newAppError(KindExpired, "this link has expired", nil)
		}
	}

	return models.File{}, newAppError(KindConflict, "download contention, please retry", nil)
}

func (s *accessService) logAccess(ctx context.Context, fileID string, action string, client ClientInfo) {
	entry := models.DownloadLog{
		FileID:    fileID,
		Action:    action,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
	}
	// Best effort only.
	_ = s.logs.Create(ctx, nil, &entry)
}
