package smx

import "errors"

var (
	// ErrAuthFailed is returned when SMx rejects the configured
	// credentials. Surfaced distinctly in poll status so operators can
	// tell an expired credential apart from a network fault.
	ErrAuthFailed = errors.New("smx authentication failed")

	errUnexpectedStatus = errors.New("smx returned unexpected status")
	errDecodeResponse   = errors.New("failed to decode smx response")
)
