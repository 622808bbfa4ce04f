package domain

import "time"

// PhotoStatus enumerates the enhancement lifecycle states.
type PhotoStatus string

const (
	PhotoStatusPending    PhotoStatus = "PENDING"
	PhotoStatusProcessing PhotoStatus = "PROCESSING"
	PhotoStatusCompleted  PhotoStatus = "COMPLETED"
	PhotoStatusFailed     PhotoStatus = "FAILED"
)

// Eligible reports whether a photo in this status may enter PROCESSING.
func (s PhotoStatus) Eligible() bool {
	return s == PhotoStatusPending || s == PhotoStatusFailed
}

// Photo is one uploaded image and its enhancement lifecycle.
type Photo struct {
	ID               string
	OwnerID          string
	OriginalLocation string
	EnhancedLocation *string
	Status           PhotoStatus
	LastError        *string
	Attempts         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Enhanced returns the enhanced location or an empty string.
func (p Photo) Enhanced() string {
	if p.EnhancedLocation == nil {
		return ""
	}
	return *p.EnhancedLocation
}

// ErrorText returns the last failure detail or an empty string.
func (p Photo) ErrorText() string {
	if p.LastError == nil {
		return ""
	}
	return *p.LastError
}
