package models

import "time"

// Post is a user-authored record with a title, an optional body and an
// optional image stored on disk under its generated file name.
type Post struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Body      string    `gorm:"type:text" json:"body"`
	Image     string    `gorm:"size:512" json:"image"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Attachments []Attachment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

// PostSummary is the listing projection of a post with the number of
// attachment rows owned by it.
type PostSummary struct {
	ID              uint   `json:"id"`
	Title           string `json:"title"`
	Body            string `json:"body"`
	Image           string `json:"image"`
	AttachmentCount int64  `json:"attachmentCount"`
}
