package compose

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors. These are surfaced locally and never reach the backend.
var (
	// ErrEmptyRecipient means no usable recipient survived resolution.
	ErrEmptyRecipient = errors.New("at least one recipient is required")

	// ErrMissingContent means subject or body is empty after trimming.
	ErrMissingContent = errors.New("subject and body are required")
)

// InvalidRecipientsError names every address that failed shape validation,
// not just the first.
type InvalidRecipientsError struct {
	Addresses []string
}

func (e *InvalidRecipientsError) Error() string {
	return fmt.Sprintf("invalid email addresses: %s", strings.Join(e.Addresses, ", "))
}
