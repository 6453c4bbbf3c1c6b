package models

import (
	"time"
)

// ErrorKind classifies the failure recorded in PollStatus so operators can
// tell an expired credential apart from a flaky network path.
type ErrorKind string

const (
	ErrorKindNone      ErrorKind = ""
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindStore     ErrorKind = "store"
)

// PollStatus is the process-wide polling state. It is mutated only by the
// poll scheduler and read by the status endpoint.
type PollStatus struct {
	LastPollStart *time.Time `json:"last_poll_start,omitempty"`
	LastPollEnd   *time.Time `json:"last_poll_end,omitempty"`
	InProgress    bool       `json:"in_progress"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorKind ErrorKind  `json:"last_error_kind,omitempty"`
	AlarmCount    int        `json:"total_alarms"`
	PollCount     uint64     `json:"poll_count"`
	IsPolling     bool       `json:"is_polling"`
}
