package redis

import "errors"

var (
	// ErrEmptyURL is returned when Config.URL is blank
	ErrEmptyURL = errors.New("redis url is empty")
	// ErrInvalidURL wraps a URL the client cannot parse
	ErrInvalidURL = errors.New("invalid redis url")
	// ErrNotReady is returned when no ping succeeded within the retry budget
	ErrNotReady = errors.New("redis is not ready")
)
