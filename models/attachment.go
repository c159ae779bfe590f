package models

import "time"

// Attachment is a stored file owned by exactly one post. Filename is the
// generated on-disk name; OriginalName is what the uploader called it and
// is only used for display and download.
type Attachment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	PostID       uint      `gorm:"index;not null" json:"post_id"`
	Filename     string    `gorm:"size:512;not null" json:"filename"`
	OriginalName string    `gorm:"size:512;not null" json:"original_name"`
	FileSize     int64     `gorm:"not null" json:"file_size"`
	CreatedAt    time.Time `json:"created_at"`
}
