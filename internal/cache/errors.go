package cache

import "fmt"

// CacheError reports a cache configuration or connection problem. Runtime
// read/write failures are never surfaced as errors; they degrade to misses.
type CacheError struct {
	Code    string
	Message string
	Err     error
}

func (e *CacheError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache error [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("cache error [%s]: %s", e.Code, e.Message)
}

func (e *CacheError) Unwrap() error { return e.Err }

// ErrInvalidConfig reports an invalid cache configuration.
func ErrInvalidConfig(msg string) *CacheError {
	return &CacheError{Code: "INVALID_CONFIG", Message: msg}
}

// ErrConnectionFailed reports a failed connection to the cache server.
func ErrConnectionFailed(err error) *CacheError {
	return &CacheError{
		Code:    "CONNECTION_FAILED",
		Message: "failed to connect to cache server",
		Err:     err,
	}
}
