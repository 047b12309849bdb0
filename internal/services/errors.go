// Package services defines the business logic for ingesting board events and
// serving the ranked feed. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrPostNotFound indicates that no post is stored for the requested
	// transaction id.
	ErrPostNotFound = errors.New("post not found")

	// ErrInvalidWindow is returned when a query window starts after it ends.
	ErrInvalidWindow = errors.New("window start is after window end")

	// ErrInvalidEvent is returned when an event lacks its transaction id.
	ErrInvalidEvent = errors.New("event has no transaction id")

	// ErrMissingPayload is returned when a post, reply or proof event carries
	// no decoded payload.
	ErrMissingPayload = errors.New("event payload missing for kind")
)
