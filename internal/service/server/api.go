package server

import (
	"time"

	"topicmsg/internal/model"
)

type (
	PublishRequest struct {
		// protobuf-encoded Envelopes
		Envelopes [][]byte `json:"envelopes"`
	}

	QueryRequest struct {
		Topics    []string `json:"topics"`
		StartNs   int64    `json:"start_ns,omitempty"`
		EndNs     int64    `json:"end_ns,omitempty"`
		Limit     int      `json:"limit,omitempty"`
		Offset    int      `json:"offset,omitempty"`
		Ascending bool     `json:"ascending"`
	}

	QueryResponse struct {
		Envelopes [][]byte `json:"envelopes"`
	}

	ErrorResponse struct {
		Error string `json:"error"`
	}
)

// NewQueryRequest translates list options for the wire.
func NewQueryRequest(topics []string, opts model.ListOptions) QueryRequest {
	q := QueryRequest{
		Topics:    topics,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
		Ascending: opts.Direction == model.SortAscending,
	}
	if !opts.StartTime.IsZero() {
		q.StartNs = opts.StartTime.UnixNano()
	}
	if !opts.EndTime.IsZero() {
		q.EndNs = opts.EndTime.UnixNano()
	}
	return q
}

func (q QueryRequest) ListOptions() model.ListOptions {
	opts := model.ListOptions{
		Limit:     q.Limit,
		Offset:    q.Offset,
		Direction: model.SortDescending,
	}
	if q.Ascending {
		opts.Direction = model.SortAscending
	}
	if q.StartNs != 0 {
		opts.StartTime = time.Unix(0, q.StartNs)
	}
	if q.EndNs != 0 {
		opts.EndTime = time.Unix(0, q.EndNs)
	}
	return opts
}
