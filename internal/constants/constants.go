// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the multipart form memory limit for photo uploads
	MaxUploadSize = 20 << 20
)

// Listing constants
const (
	// DefaultAttendanceLimit is the default number of records returned
	// for a per-student attendance history
	DefaultAttendanceLimit = 30

	// MaxAttendanceLimit caps the per-student attendance history size
	MaxAttendanceLimit = 365
)
