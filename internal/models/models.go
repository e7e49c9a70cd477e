package models

import "time"

// VerificationStatus is the persisted classification of an upload
type VerificationStatus string

const (
	StatusSuccess  VerificationStatus = "success"
	StatusNotPlant VerificationStatus = "not_plant"
	// StatusDuplicate is only ever a response status, never stored on an Upload
	StatusDuplicate VerificationStatus = "duplicate"
)

// Persisted reports whether the status may appear on a ledger row
func (s VerificationStatus) Persisted() bool {
	return s == StatusSuccess || s == StatusNotPlant
}

// User represents a player in the system
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Points       int       `json:"points"`
	TreesPlanted int       `json:"treesPlanted"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Location is an optional capture position attached to an upload
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are inside WGS84 bounds
func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// Upload represents one verified upload attempt stored in the ledger
type Upload struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	ImageHash          string             `json:"imageHash"`
	FileName           string             `json:"fileName"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	PointsAwarded      int                `json:"pointsAwarded"`
	Location           *Location          `json:"location"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// GlobalStats is the derived aggregate shown on the impact panel
type GlobalStats struct {
	ID          string    `json:"id"`
	TotalTrees  int       `json:"totalTrees"`
	TotalUsers  int       `json:"totalUsers"`
	TotalPhotos int       `json:"totalPhotos"`
	Countries   int       `json:"countries"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Totals are the raw counters read from storage in one consistent view
type Totals struct {
	Users          int
	SuccessUploads int
	Trees          int
}

// UploadResult is the response contract of the upload pipeline
type UploadResult struct {
	Success bool               `json:"success"`
	Status  VerificationStatus `json:"status"`
	Message string             `json:"message"`
	Points  int                `json:"points"`
	Upload  *Upload            `json:"upload,omitempty"`
}
