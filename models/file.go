package models

import (
	"time"

	"gorm.io/gorm"
)

// File is the ledger row for one uploaded object. The download token is the
// only credential a public downloader presents; DeletedAt tombstones the row
// so every scoped query treats it as if it never existed.
type File struct {
	ID            string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID        uint           `gorm:"not null;index" json:"user_id"`
	StorageKey    string         `gorm:"type:varchar(1000);not null" json:"-"`
	OriginalName  string         `gorm:"type:varchar(255);not null" json:"original_filename"`
	MimeType      string         `gorm:"type:varchar(100)" json:"mime_type"`
	FileSize      int64          `gorm:"not null" json:"file_size"`
	Checksum      string         `gorm:"type:varchar(32)" json:"checksum"`
	IsImage       bool           `gorm:"default:false" json:"is_image"`
	ThumbnailPath string         `gorm:"type:varchar(1000)" json:"-"`
	DownloadToken string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"download_token"`
	DownloadCount int            `gorm:"not null;default:0" json:"download_count"`
	MaxDownloads  *int           `json:"max_downloads,omitempty"`
	ExpiresAt     *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsExpired reports whether the object is past its expiry at the given time.
func (f *File) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && now.After(*f.ExpiresAt)
}

// IsExhausted reports whether the download quota is fully consumed.
func (f *File) IsExhausted() bool {
	return f.MaxDownloads != nil && f.DownloadCount >= *f.MaxDownloads
}
