package service

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("invalid request")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInactiveUser         = errors.New("inactive user")
	ErrInvalidPreferenceKey = errors.New("invalid preference key")
)
