package proxy

import (
	"errors"
)

var (
	// ErrMissingUpstream is returned by New when no upstream URL is configured.
	ErrMissingUpstream = errors.New("upstream URL must be configured")

	// ErrInvalidUpstream is returned by New when the upstream URL cannot be
	// parsed as an absolute http or https URL.
	ErrInvalidUpstream = errors.New("upstream URL is not valid")
)
