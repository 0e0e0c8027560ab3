// Package handler holds the operator API's gin handlers. Grounded on the
// teacher's internal/transport/http/handler package shape: one file per
// resource plus a shared errors.go of response-message constants.
package handler

const (
	errMissingTarget  = "target name is required"
	errInternal       = "internal error"
	errInvalidRequest = "invalid request"
)
