package model

import "errors"

// Domain errors. They are returned before anything is written and are safe
// to show to the caller.
var (
	ErrFieldLength        = errors.New("field length out of bounds")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
	ErrThreadIDLength     = errors.New("thread id must be exactly 16 characters")
	ErrUnknownTag         = errors.New("tag is not one of the accepted values")
	ErrRecurrence         = errors.New("invalid recurrence")
	ErrInvalidAlias       = errors.New("invalid location alias")
	ErrLocationNotFound   = errors.New("location not found")
	ErrOfferingNotFound   = errors.New("offering not found")
)
