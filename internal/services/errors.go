// Package services defines the business logic for service requests, status
// transitions, payments, and notifications. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; the
// translation into HTTP status codes is performed at the handler layer.
package services

import "errors"

var (
	// ErrRequestNotFound indicates that the requested service request does
	// not exist.
	ErrRequestNotFound = errors.New("service request not found")

	// ErrInvalidStatus is returned when a submitted status is not a member
	// of the status enum.
	ErrInvalidStatus = errors.New("invalid status value")

	// ErrInvalidTransition is returned when the transition table denies the
	// requested status change for the acting role.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrForbidden is returned when the acting user is neither the customer,
	// the assigned shop, an assigned driver, nor an admin.
	ErrForbidden = errors.New("not permitted to modify this service request")

	// ErrNoUpdatableFields is returned when, after field filtering, nothing
	// of the submitted body remains writable for the acting role and the
	// request's current status.
	ErrNoUpdatableFields = errors.New("no updatable fields for this role and status")

	// ErrConflict is returned when a concurrent writer moved the request to
	// a different status between the read and the guarded write.
	ErrConflict = errors.New("service request was modified concurrently")

	// ErrNotificationNotFound indicates that a notification does not exist
	// or belongs to another user.
	ErrNotificationNotFound = errors.New("notification not found")
)
