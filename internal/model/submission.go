package model

import (
	"time"
)

const (
	FileTypeDocument = "document"
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
	FileTypeArchive  = "archive"
	FileTypeOther    = "other"
)

// PendingSubmission waits for moderation before it is published.
type PendingSubmission struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description"`
	FileType    string    `db:"file_type" json:"fileType"`
	DriveLink   string    `db:"drive_link" json:"driveLink"`
	Fingerprint string    `db:"fingerprint" json:"-"`
	IPAddress   string    `db:"ip_address" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}
