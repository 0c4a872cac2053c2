package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid payload")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrUnsupportedJobType  = errors.New("unsupported job type")
	ErrNoUsableOutput      = errors.New("no usable output produced")
	ErrRedeliveryExhausted = errors.New("redelivery attempts exhausted")
)
