package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrForbidden    = fmt.Errorf("forbidden")
	ErrTokenExpired = fmt.Errorf("access token expired")

	// Request queue errors
	ErrDuplicateRequest = fmt.Errorf("song already requested")
	ErrRequestNotFound  = fmt.Errorf("request not found")
	ErrInvalidStatus    = fmt.Errorf("invalid request status")
	ErrEndOfQueue       = fmt.Errorf("end of play queue")

	// Catalog and service errors
	ErrUpstreamCatalog    = fmt.Errorf("catalog request failed")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrAPIRequest         = fmt.Errorf("API request failed")

	// Realtime errors
	ErrBrokerClosed = fmt.Errorf("broker closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
