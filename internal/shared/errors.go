package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrNotConfigured      = fmt.Errorf("client credentials not configured")

	// Token cache errors
	ErrTokenNotFound = fmt.Errorf("token file not found")
	ErrDeserialize   = fmt.Errorf("token file could not be decoded")
	ErrIO            = fmt.Errorf("token file I/O failed")
	ErrTokenLoad     = fmt.Errorf("cached token unusable")
	ErrPersist       = fmt.Errorf("token could not be cached")

	// Authentication errors
	ErrOAuthExchange = fmt.Errorf("oauth exchange failed")
	ErrTokenExpired  = fmt.Errorf("access token expired")

	// Session and API errors
	ErrSessionUnavailable    = fmt.Errorf("spotify session unavailable")
	ErrUnexpectedResultShape = fmt.Errorf("unexpected search result shape")
	ErrAPIAction             = fmt.Errorf("spotify action failed")

	// Input validation errors
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
