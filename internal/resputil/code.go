package resputil

type ErrorCode int

const (
	OK ErrorCode = 0

	// General
	InvalidRequest ErrorCode = 40001

	// Token
	TokenExpired ErrorCode = 40101
	TokenInvalid ErrorCode = 40102

	// Login
	InvalidCredentials ErrorCode = 40106

	// User is not allowed to access the resource
	UserNotAllowed ErrorCode = 40301

	// Resource does not exist or is hidden from the caller
	ResourceNotFound ErrorCode = 40401

	// Resource already exists
	ResourceConflict ErrorCode = 40901

	// Too many requests in the window
	RateLimited ErrorCode = 42901

	// Indicates laziness of the developer
	// Frontend will directly print the message without any translation
	NotSpecified ErrorCode = 99999
)
