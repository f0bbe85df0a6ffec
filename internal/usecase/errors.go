package usecase

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrUpstreamTransport covers network failures, non-2xx statuses and
	// undecodable bodies from the stats provider.
	ErrUpstreamTransport = errors.New("upstream request failed")
	// ErrUpstreamNotFound marks an upstream 404. It is always wrapped
	// together with ErrUpstreamTransport.
	ErrUpstreamNotFound = errors.New("upstream resource not found")
)
