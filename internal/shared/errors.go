package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Fleet engine errors
	ErrPermissionDenied         = fmt.Errorf("permission denied")
	ErrNotFound                 = fmt.Errorf("not found")
	ErrRemoteUnavailable        = fmt.Errorf("remote service unavailable")
	ErrRemoteTimeout            = fmt.Errorf("remote service timed out")
	ErrDuplicateName            = fmt.Errorf("duplicate name")
	ErrReconstructionIncomplete = fmt.Errorf("reconstruction incomplete")
	ErrInvalidTemplate          = fmt.Errorf("invalid template")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
