package form

import (
	"errors"
	"fmt"
)

var (
	ErrMissingIdentity   = errors.New("user identity is required")
	ErrPhotoLimitReached = errors.New("photo limit reached")
	ErrPhotoIndex        = errors.New("photo index out of range")
	ErrMissingPhotos     = errors.New("at least one photo is required")
	ErrInvalidPrice      = errors.New("a positive price is required for a sale")
	ErrMissingCategory   = errors.New("category is required")
	ErrInvalidType       = errors.New("listing type must be sale or trade")
)

// InsertError is returned by Submit when the record store rejects the listing.
// The draft is left untouched so the user can retry.
type InsertError struct {
	Err error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("failed to create listing: %v", e.Err)
}

func (e *InsertError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err blocked a submission before any network call.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingPhotos) ||
		errors.Is(err, ErrInvalidPrice) ||
		errors.Is(err, ErrMissingCategory)
}
