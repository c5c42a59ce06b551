package consts

import "time"

// Buffer sizes for various operations
const (
	// BufferSize64KB is 64 kilobytes
	BufferSize64KB = 64 * 1024
	// BufferSize1MB is 1 megabyte
	BufferSize1MB = 1024 * 1024
)

// Portal result limits
const (
	// MaxResultItems caps the structured item list shown next to the map.
	MaxResultItems = 5
	// MaxEnrichmentMarkers caps the live markers added to a category map.
	MaxEnrichmentMarkers = 3
	// MaxSearchItems is the largest page the portal search accepts.
	MaxSearchItems = 100
)

// DefaultMaxSteps caps the statements and loop iterations a single
// generated script may run.
const DefaultMaxSteps = 200_000

// Timeouts for various operations
const (
	// Timeout2Seconds is a 2 second timeout
	Timeout2Seconds = 2 * time.Second
	// Timeout5Seconds is a 5 second timeout
	Timeout5Seconds = 5 * time.Second
	// Timeout30Seconds is a 30 second timeout
	Timeout30Seconds = 30 * time.Second
	// Timeout2Minutes is a 2 minute timeout
	Timeout2Minutes = 2 * time.Minute
)
