package store

import "errors"

var (
	ErrUnsupportedStore = errors.New("unsupported analytics store")
	ErrRedisNotReady    = errors.New("redis is not ready")
	ErrInvalidCount     = errors.New("invalid analytics count")
)
