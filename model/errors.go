package model

import "errors"

var (
	ErrUnknownField          = errors.New("unknown registration field")
	ErrRegistrationNotFound  = errors.New("registration does not exist")
	ErrRegistrationIDMissing = errors.New("registration id is required")
)
