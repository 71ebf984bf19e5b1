package models

import "time"

// DownloadLog records one public access against a shared object. Written
// best effort; a failed insert never blocks the download itself.
type DownloadLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileID     string    `gorm:"type:varchar(36);not null;index" json:"file_id"`
	Action     string    `gorm:"type:varchar(20);not null;index" json:"action"`
	IPAddress  string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent  string    `gorm:"type:varchar(500)" json:"user_agent"`
	AccessTime time.Time `gorm:"index;autoCreateTime" json:"access_time"`
}
