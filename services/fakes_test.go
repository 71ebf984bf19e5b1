package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"anonlink/config"
	"anonlink/models"
	"anonlink/repositories"

	"gorm.io/gorm"
)

func setTestConfig() {
	config.AppConfig = &config.Config{
		Storage: config.StorageConfig{
			BasePath:         "unused",
			MaxFileSize:      1 << 20,
			DefaultUserQuota: 1 << 30,
		},
		JWT: config.JWTConfig{Secret: "test-secret", ExpireHours: 24},
		Share: config.ShareConfig{
			RegenerateRetries: 3,
			ConsumeRetries:    8,
		},
		Cleanup: config.CleanupConfig{
			IntervalSeconds:        3600,
			TombstoneRetentionDays: 30,
			BatchSize:              200,
		},
		Thumbnail:  config.ThumbnailConfig{Width: 64, Height: 64, Quality: 80},
		Pagination: config.PaginationConfig{DefaultPageSize: 20, MaxPageSize: 100},
	}
}

type fakeTxManager struct {
	failWith error
}

func (m *fakeTxManager) WithTransaction(_ context.Context, fn func(tx *gorm.DB) error) error {
	if m.failWith != nil {
		return m.failWith
	}
	return fn(nil)
}

type fakeUserRepo struct {
	mu      sync.Mutex
	usersByID map[uint]models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{usersByID: map[uint]models.User{}}
}

func (r *fakeUserRepo) addUser(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usersByID[user.ID] = user
}

func (r *fakeUserRepo) CountByUsername(_ context.Context, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, u := range r.usersByID {
		if u.Username == username {
			count++
		}
	}
	return count, nil
}

func (r *fakeUserRepo) Create(_ context.Context, _ *gorm.DB, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uint(len(r.usersByID) + 1)
	user.CreatedAt = time.Now()
	r.usersByID[user.ID] = *user
	return nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, _ *gorm.DB, username string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.usersByID {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, userID uint) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.usersByID[userID]
	if !ok {
		return models.User{}, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) AddStorageUsed(_ context.Context, _ *gorm.DB, userID uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.usersByID[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.StorageUsed += delta
	r.usersByID[userID] = user
	return nil
}

func (r *fakeUserRepo) SubStorageUsed(_ context.Context, _ *gorm.DB, userID uint, delta int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.usersByID[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	user.StorageUsed -= delta
	if user.StorageUsed < 0 {
		user.StorageUsed = 0
	}
	r.usersByID[userID] = user
	return nil
}

// fakeFileRepo mirrors the ledger semantics: live rows, tombstones, and
// conditional updates that fail with ErrConflict when the expected value no
// longer matches.
type fakeFileRepo struct {
	mu        sync.Mutex
	live      map[string]models.File
	tombstone map[string]models.File
	deletedAt map[string]time.Time
	createErr        error
	dupTokens        int
	replaceConflicts int
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{
		live:      map[string]models.File{},
		tombstone: map[string]models.File{},
		deletedAt: map[string]time.Time{},
	}
}

func (r *fakeFileRepo) addFile(file models.File) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	r.live[file.ID] = file
}

func (r *fakeFileRepo) getLive(fileID string) (models.File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.live[fileID]
	return f, ok
}

func (r *fakeFileRepo) Create(_ context.Context, _ *gorm.DB, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if r.dupTokens > 0 {
		r.dupTokens--
		return gorm.ErrDuplicatedKey
	}
	for _, f := range r.live {
		if f.DownloadToken == file.DownloadToken {
			return gorm.ErrDuplicatedKey
		}
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now()
	}
	r.live[file.ID] = *file
	return nil
}

func (r *fakeFileRepo) GetByID(_ context.Context, _ *gorm.DB, fileID string) (models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.live[fileID]
	if !ok {
		return models.File{}, gorm.ErrRecordNotFound
	}
	return f, nil
}

func (r *fakeFileRepo) GetByToken(_ context.Context, _ *gorm.DB, token string) (models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.live {
		if f.DownloadToken == token {
			return f, nil
		}
	}
	return models.File{}, gorm.ErrRecordNotFound
}

func (r *fakeFileRepo) CountByUser(_ context.Context, _ *gorm.DB, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, f := range r.live {
		if f.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (r *fakeFileRepo) ListByUser(_ context.Context, _ *gorm.DB, in repositories.ListFilesInput) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []models.File
	for _, f := range r.live {
		if f.UserID == in.UserID {
			files = append(files, f)
		}
	}
	for i := 0; i < len(files); i++ {
		for j := i + 1; j < len(files); j++ {
			if files[j].CreatedAt.After(files[i].CreatedAt) {
				files[i], files[j] = files[j], files[i]
			}
		}
	}
	if in.Offset >= len(files) {
		return nil, nil
	}
	end := in.Offset + in.Limit
	if end > len(files) {
		end = len(files)
	}
	return files[in.Offset:end], nil
}

func (r *fakeFileRepo) ConsumeDownload(_ context.Context, _ *gorm.DB, fileID string, expectedCount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.live[fileID]
	if !ok || f.DownloadCount != expectedCount {
		return repositories.ErrConflict
	}
	f.DownloadCount++
	r.live[fileID] = f
	return nil
}

func (r *fakeFileRepo) IncrementDownload(_ context.Context, _ *gorm.DB, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.live[fileID]
	if !ok {
		return repositories.ErrConflict
	}
	f.DownloadCount++
	r.live[fileID] = f
	return nil
}

func (r *fakeFileRepo) ReplaceToken(_ context.Context, _ *gorm.DB, fileID string, oldToken string, newToken string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.replaceConflicts > 0 {
		r.replaceConflicts--
		return repositories.ErrConflict
	}
	f, ok := r.live[fileID]
	if !ok || f.DownloadToken != oldToken {
		return repositories.ErrConflict
	}
	f.DownloadToken = newToken
	r.live[fileID] = f
	return nil
}

func (r *fakeFileRepo) MarkDeleted(_ context.Context, _ *gorm.DB, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.live[fileID]
	if !ok {
		return nil
	}
	delete(r.live, fileID)
	r.tombstone[fileID] = f
	r.deletedAt[fileID] = time.Now()
	return nil
}

func (r *fakeFileRepo) ListExpired(_ context.Context, _ *gorm.DB, now time.Time, limit int) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []models.File
	for _, f := range r.live {
		if f.ExpiresAt != nil && now.After(*f.ExpiresAt) {
			files = append(files, f)
			if len(files) >= limit {
				break
			}
		}
	}
	return files, nil
}

func (r *fakeFileRepo) ListExhausted(_ context.Context, _ *gorm.DB, limit int) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var files []models.File
	for _, f := range r.live {
		if f.MaxDownloads != nil && f.DownloadCount >= *f.MaxDownloads {
			files = append(files, f)
			if len(files) >= limit {
				break
			}
		}
	}
	return files, nil
}

func (r *fakeFileRepo) PurgeTombstonesBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, at := range r.deletedAt {
		if at.Before(cutoff) {
			delete(r.tombstone, id)
			delete(r.deletedAt, id)
			purged++
		}
	}
	return purged, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []models.DownloadLog
}

func (r *fakeLogRepo) Create(_ context.Context, _ *gorm.DB, entry *models.DownloadLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLogRepo) CountByFile(_ context.Context, _ *gorm.DB, fileID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, e := range r.entries {
		if e.FileID == fileID {
			count++
		}
	}
	return count, nil
}

// fakeBlobStore keeps blobs in memory. Open returns a reader over a copy, so
// an already-granted stream survives a later Delete, matching how an open
// file descriptor behaves on disk.
type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	saveErr error
	openErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (s *fakeBlobStore) Save(_ context.Context, key string, r io.Reader) (int64, error) {
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return int64(len(data)), nil
}

func (s *fakeBlobStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (s *fakeBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func (s *fakeBlobStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	return ok, nil
}

func (s *fakeBlobStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type fakeHinter struct {
	mu    sync.Mutex
	hints []string
}

func (h *fakeHinter) Hint(fileID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hints = append(h.hints, fileID)
}

// stubTokenIssuer returns queued tokens first, then falls back to the real
// issuer; used to force token collisions.
type stubTokenIssuer struct {
	queued   []string
	fallback TokenIssuer
}

func (s *stubTokenIssuer) Issue() string {
	if len(s.queued) > 0 {
		token := s.queued[0]
		s.queued = s.queued[1:]
		return token
	}
	if s.fallback == nil {
		s.fallback = NewTokenIssuer()
	}
	return s.fallback.Issue()
}

var errBoom = errors.New("boom")
