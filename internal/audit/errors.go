package audit

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid key record")
	ErrFetch      = errors.New("listing keys failed")
	ErrDirectory  = errors.New("listing identities failed")
)

// ValidationError reports a key record that could not be classified.
type ValidationError struct {
	Identity string
	KeyID    string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s/%s: %s", ErrValidation, e.Identity, e.KeyID, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FetchError reports an identity whose keys could not be listed.
type FetchError struct {
	Identity string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrFetch, e.Identity, e.Err)
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DirectoryError reports that the identities themselves could not be enumerated.
type DirectoryError struct {
	Err error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s: %v", ErrDirectory, e.Err)
}

func (e *DirectoryError) Is(target error) bool {
	return target == ErrDirectory
}

func (e *DirectoryError) Unwrap() error {
	return e.Err
}
