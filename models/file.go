package models

import "time"

// FileRecord maps a public file identifier to the Telegram file id that
// actually holds the bytes. Records are written once on upload and never
// updated; the unique index on file_id is what guarantees identifier
// uniqueness under concurrent inserts.
type FileRecord struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	FileID         string    `gorm:"size:32;uniqueIndex;not null" json:"file_id"`
	TelegramFileID string    `gorm:"size:255;not null" json:"-"`
	FileURL        string    `gorm:"size:1024;not null" json:"file_url"`
	CreatedAt      time.Time `json:"created_at"`
}
