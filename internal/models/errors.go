package models

import (
	"errors"
	"fmt"
)

var (
	// ErrWeatherUnavailable means the forecast API could not produce a snapshot
	ErrWeatherUnavailable = errors.New("weather data unavailable")
	// ErrNoDataset means no refresh has completed yet
	ErrNoDataset = errors.New("no dataset generated yet")
	// ErrUserExists is returned when registering a duplicate email
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials covers both unknown email and wrong password
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrClassifierUnavailable means no image classifier is configured
	ErrClassifierUnavailable = errors.New("image classifier not configured")
)

// ValidationError represents a request validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// IsTransient returns false as the resource will not appear on retry
func (e *NotFoundError) IsTransient() bool {
	return false
}
