package services

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"path"
	"time"

	"anonlink/config"
	"anonlink/models"
	"anonlink/repositories"
	"anonlink/storage"
	"anonlink/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadInput struct {
	Reader       io.Reader
	OriginalName string
	MimeType     string
	Size         int64
	// TTLHours overrides the configured default when set; zero disables
	// expiry for this object even if a default TTL is configured.
	TTLHours     *int
	MaxDownloads *int
}

type FileListOutput struct {
	Files      []models.File        `json:"files"`
	Pagination utils.PaginationData `json:"pagination"`
}

type FileService interface {
	Upload(ctx context.Context, userID uint, in UploadInput) (models.File, error)
	ListFiles(ctx context.Context, userID uint, page int, pageSize int) (FileListOutput, error)
	RegenerateToken(ctx context.Context, userID uint, fileID string) (models.File, error)
	Delete(ctx context.Context, userID uint, fileID string) error
	OwnerDownload(ctx context.Context, userID uint, fileID string) (models.File, io.ReadCloser, error)
}

type fileService struct {
	txManager TxManager
	users     repositories.UserRepository
	files     repositories.FileRepository
	store     storage.BlobStore
	tokens    TokenIssuer
}

func NewFileService(
	txManager TxManager,
	users repositories.UserRepository,
	files repositories.FileRepository,
	store storage.BlobStore,
	tokens TokenIssuer,
) FileService {
	return &fileService{
		txManager: txManager,
		users:     users,
		files:     files,
		store:     store,
		tokens:    tokens,
	}
}

// createRetries bounds the re-issue loop when a freshly minted token collides
// with an existing row. With 144-bit tokens this loop exists only as defense
// in depth against a broken entropy source or index.
const createRetries = 3

func (s *fileService) Upload(ctx context.Context, userID uint, in UploadInput) (models.File, error) {
	maxSize := config.AppConfig.Storage.MaxFileSize
	if in.Size <= 0 {
		return models.File{}, newAppError(KindValidation, "file is empty", nil)
	}
	if in.Size > maxSize {
		return models.File{}, newAppError(KindTooLarge, "file exceeds the maximum allowed size", nil)
	}
	if in.MaxDownloads != nil && *in.MaxDownloads <= 0 {
		return models.File{}, newAppError(KindValidation, "max_downloads must be positive", nil)
	}
	if in.TTLHours != nil && *in.TTLHours < 0 {
		return models.File{}, newAppError(KindValidation, "ttl_hours must not be negative", nil)
	}

	user, err := s.users.GetByID(ctx, nil, userID)
	if err != nil {
		return models.File{}, newAppError(KindInternal, "failed to query user", err)
	}
	if user.StorageUsed+in.Size > user.StorageQuota {
		return models.File{}, newAppErrorWithData(KindValidation, "storage quota exceeded", map[string]interface{}{
			"storage_quota":   user.StorageQuota,
			"storage_used":    user.StorageUsed,
			"available_space": user.StorageQuota - user.StorageUsed,
			"required_space":  in.Size,
		}, nil)
	}

	now := time.Now()
	fileID := uuid.New().String()
	originalName := sanitizeFilename(in.OriginalName)
	storageKey := path.Join("files", fmt.Sprintf("%d", userID), now.Format("2006"), now.Format("01"), fileID+"_"+originalName)

	// The blob is written before any ledger row exists; a failed upload
	// must never leave either half behind.
	hasher := md5.New()
	limited := io.LimitReader(in.Reader, maxSize+1)
	written, err := s.store.Save(ctx, storageKey, io.TeeReader(limited, hasher))
	if err != nil {
		return models.File{}, newAppError(KindStorage, "failed to store file", err)
	}
	if written > maxSize {
		_ = s.store.Delete(ctx, storageKey)
		return models.File{}, newAppError(KindTooLarge, "file exceeds the maximum allowed size", nil)
	}
	checksum := hex.EncodeToString(hasher.Sum(nil))

	isImage := IsImageFile(originalName)
	var thumbnailPath string
	if isImage {
		if thumbKey, thumbErr := s.generateThumbnail(ctx, userID, fileID, storageKey, now); thumbErr == nil {
			thumbnailPath = thumbKey
		}
	}

	var expiresAt *time.Time
	ttlHours := config.AppConfig.Share.DefaultTTLHours
	if in.TTLHours != nil {
		ttlHours = *in.TTLHours
	}
	if ttlHours > 0 {
		t := now.Add(time.Duration(ttlHours) * time.Hour)
		expiresAt = &t
	}

	record := models.File{
		ID:            fileID,
		UserID:        userID,
		StorageKey:    storageKey,
		OriginalName:  originalName,
		MimeType:      normalizeMimeType(in.MimeType),
		FileSize:      written,
		Checksum:      checksum,
		IsImage:       isImage,
		ThumbnailPath: thumbnailPath,
		MaxDownloads:  in.MaxDownloads,
		ExpiresAt:     expiresAt,
	}

	for attempt := 0; ; attempt++ {
		record.DownloadToken = s.tokens.Issue()
		err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
			if err := s.files.Create(ctx, tx, &record); err != nil {
				return err
			}
			return s.users.AddStorageUsed(ctx, tx, userID, written)
		})
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < createRetries {
			continue
		}
		// Compensate: the orphan blob must not survive a failed upload.
		_ = s.store.Delete(ctx, storageKey)
		if thumbnailPath != "" {
			_ = s.store.Delete(ctx, thumbnailPath)
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.File{}, newAppError(KindConflict, "failed to assign a unique download token", err)
		}
		return models.File{}, newAppError(KindStorage, "failed to save file record", err)
	}

	return record, nil
}

func (s *fileService) generateThumbnail(ctx context.Context, userID uint, fileID string, storageKey string, now time.Time) (string, error) {
	src, err := s.store.Open(ctx, storageKey)
	if err != nil {
		return "", err
	}
	defer src.Close()

	thumb, err := GenerateThumbnail(src)
	if err != nil {
		return "", err
	}

	thumbKey := path.Join("thumbnails", fmt.Sprintf("%d", userID), now.Format("2006"), now.Format("01"), fileID+"_thumb.jpg")
	if _, err := s.store.Save(ctx, thumbKey, bytes.NewReader(thumb)); err != nil {
		return "", err
	}
	return thumbKey, nil
}

func (s *fileService) ListFiles(ctx context.Context, userID uint, page int, pageSize int) (FileListOutput, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > config.AppConfig.Pagination.MaxPageSize {
		pageSize = config.AppConfig.Pagination.DefaultPageSize
	}

	total, err := s.files.CountByUser(ctx, nil, userID)
	if err != nil {
		return FileListOutput{}, newAppError(KindInternal, "failed to count files", err)
	}

	list, err := s.files.ListByUser(ctx, nil, repositories.ListFilesInput{
		UserID: userID,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	})
	if err != nil {
		return FileListOutput{}, newAppError(KindInternal, "failed to list files", err)
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))
	if totalPages == 0 {
		totalPages = 1
	}

	return FileListOutput{
		Files: list,
		Pagination: utils.PaginationData{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// RegenerateToken rotates the download token through a conditional update:
// the old credential stops resolving in the same instant the new one starts.
func (s *fileService) RegenerateToken(ctx context.Context, userID uint, fileID string) (models.File, error) {
	retries := config.AppConfig.Share.RegenerateRetries

	for attempt := 0; attempt <= retries; attempt++ {
		file, err := s.files.GetByID(ctx, nil, fileID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.File{}, newAppError(KindNotFound, "file not found", nil)
			}
			return models.File{}, newAppError(KindInternal, "failed to query file", err)
		}
		if file.UserID != userID {
			return models.File{}, newAppError(KindForbidden, "you do not own this file", nil)
		}

		newToken := s.tokens.Issue()
		err = s.files.ReplaceToken(ctx, nil, fileID, file.DownloadToken, newToken)
		if err == nil {
			file.DownloadToken = newToken
			return file, nil
		}
		if errors.Is(err, repositories.ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		return models.File{}, newAppError(KindInternal, "failed to replace token", err)
	}

	return models.File{}, newAppError(KindConflict, "file was modified concurrently, please retry", nil)
}

// Delete tombstones the ledger row before the blob is removed, so the access
// gate stops granting while the content still exists, never the reverse.
func (s *fileService) Delete(ctx context.Context, userID uint, fileID string) error {
	file, err := s.files.GetByID(ctx, nil, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newAppError(KindNotFound, "file not found", nil)
		}
		return newAppError(KindInternal, "failed to query file", err)
	}
	if file.UserID != userID {
		return newAppError(KindForbidden, "you do not own this file", nil)
	}

	err = s.txManager.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.files.MarkDeleted(ctx, tx, fileID); err != nil {
			return err
		}
		return s.users.SubStorageUsed(ctx, tx, userID, file.FileSize)
	})
	if err != nil {
		return newAppError(KindInternal, "failed to delete file", err)
	}

	if err := s.store.Delete(ctx, file.StorageKey); err != nil {
		log.Printf("warning: failed to delete blob %s: %v", file.StorageKey, err)
	}
	if file.ThumbnailPath != "" {
		if err := s.store.Delete(ctx, file.ThumbnailPath); err != nil {
			log.Printf("warning: failed to delete thumbnail %s: %v", file.ThumbnailPath, err)
		}
	}
	return nil
}

func (s *fileService) OwnerDownload(ctx context.Context, userID uint, fileID string) (models.File, io.ReadCloser, error) {
	file, err := s.files.GetByID(ctx, nil, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.File{}, nil, newAppError(KindNotFound, "file not found", nil)
		}
		return models.File{}, nil, newAppError(KindInternal, "failed to query file", err)
	}
	if file.UserID != userID {
		return models.File{}, nil, newAppError(KindForbidden, "you do not own this file", nil)
	}

	rc, err := s.store.Open(ctx, file.StorageKey)
	if err != nil {
		return models.File{}, nil, newAppError(KindStorage, "failed to open file content", err)
	}
	return file, rc, nil
}
