package models

import (
	"strings"
	"time"
)

// Identity is the result of the external Google OAuth exchange: a
// verified email plus the tokens needed to read the user's Drive.
// It lives only for the duration of a request; tokens are never stored.
type Identity struct {
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	DisplayName  string `json:"displayName"`
}

// NormalizedEmail returns the identity's email lower-cased and trimmed,
// the form used for allow-list checks and the uploaded_by column.
func (id *Identity) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(id.Email))
}

// DriveFile is one entry of a Drive listing: the fields requested from
// the files endpoint, nothing more.
type DriveFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mimeType"`
	CreatedTime time.Time `json:"createdTime"`
}

// Place holds the administrative levels resolved from a coordinate
// pair. Fields are independently optional; empty string means the
// geocoder had no candidate for that level.
type Place struct {
	District string `json:"district"`
	Tehsil   string `json:"tehsil"`
	Village  string `json:"village"`
	Country  string `json:"country"`
}
