package model

import "time"

type (
	SortDirection int

	// ListOptions bounds a history query. Zero values mean unbounded.
	ListOptions struct {
		StartTime time.Time
		EndTime   time.Time
		Limit     int
		// Offset skips that many envelopes of the ordered result before Limit
		// applies.
		Offset    int
		Direction SortDirection
		// PageSize is used by paginated listing only.
		PageSize int
	}
)

const (
	SortAscending SortDirection = iota
	SortDescending
)

// DefaultPageSize is used when ListOptions.PageSize is not set.
const DefaultPageSize = 100
