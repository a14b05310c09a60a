package models

import "errors"

// Error taxonomy shared by every component. Concrete errors wrap one of these
// so the API boundary can route them with errors.Is.
var (
	ErrValidation       = errors.New("validation error")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrStorage          = errors.New("storage error")
	ErrNotFound         = errors.New("not found")
)
