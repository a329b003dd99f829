package services

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrNotFound           = errors.New("user not found")
	ErrUpstream           = errors.New("weather provider failure")
	ErrPersistence        = errors.New("persistence failure")
)
