package models

import (
	"time"

	"github.com/google/uuid"
)

// Image is a photo pulled from Google Drive with its binary payload and
// the location attributes derived from embedded metadata.
// A row is created at most once per Drive file (file_id is unique) and
// never updated afterwards; re-sync skips existing rows.
type Image struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FileID        string     `db:"file_id" json:"fileId"`
	Name          string     `db:"name" json:"name"`
	MimeType      string     `db:"mime_type" json:"mimeType"`
	ImageData     []byte     `db:"image_data" json:"-"`
	Latitude      *float64   `db:"latitude" json:"latitude"`
	Longitude     *float64   `db:"longitude" json:"longitude"`
	TakenAt       time.Time  `db:"taken_at" json:"timestamp"`
	UploadedBy    string     `db:"uploaded_by" json:"uploadedBy"`
	District      string     `db:"district" json:"district"`
	Tehsil        string     `db:"tehsil" json:"tehsil"`
	Village       string     `db:"village" json:"village"`
	Country       string     `db:"country" json:"country"`
	LastCheckedAt *time.Time `db:"last_checked_at" json:"lastCheckedAt"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// HasCoordinates reports whether the record carries a full coordinate
// pair. Latitude and longitude are stored together or not at all.
func (i *Image) HasCoordinates() bool {
	return i.Latitude != nil && i.Longitude != nil
}

// AllowedEmail is an entry of the administrator-maintained allow-list
// gating Google-identity features. Emails are stored lower-cased.
type AllowedEmail struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	AddedBy   string    `db:"added_by" json:"addedBy"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
