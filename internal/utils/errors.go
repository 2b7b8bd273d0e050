package utils

import "errors"

// Admission errors. The message doubles as the machine-readable code.
var (
	ErrAPIKeyRequired      = errors.New("API_KEY_REQUIRED")
	ErrInvalidAPIKeyFormat = errors.New("INVALID_API_KEY_FORMAT")
	ErrInvalidAPIKey       = errors.New("INVALID_API_KEY")
	ErrInvalidSecretKey    = errors.New("INVALID_SECRET_KEY")
	ErrMerchantInactive    = errors.New("MERCHANT_INACTIVE")
	ErrIPNotAllowed        = errors.New("IP_NOT_ALLOWED")
	ErrPermissionDenied    = errors.New("PERMISSION_DENIED")
	ErrRateLimitExceeded   = errors.New("RATE_LIMIT_EXCEEDED")
)

// Admin and lookup errors.
var (
	ErrInvalidToken       = errors.New("INVALID_TOKEN")
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrAccountInactive    = errors.New("ACCOUNT_INACTIVE")
	ErrMerchantNotFound   = errors.New("MERCHANT_NOT_FOUND")
	ErrMerchantExists     = errors.New("MERCHANT_EXISTS")
	ErrAPIKeyNotFound     = errors.New("API_KEY_NOT_FOUND")
	ErrInvalidKeyMode     = errors.New("INVALID_KEY_MODE")
)

// Internal failure codes returned with a 500, one per admission stage.
const (
	CodeAuthError       = "AUTH_ERROR"
	CodePermissionError = "PERMISSION_ERROR"
)
