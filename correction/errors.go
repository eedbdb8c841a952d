package correction

import "errors"

// ErrValidation is returned when a record or file violates the review
// state machine. Saves failing validation are rejected wholesale before
// anything reaches disk.
var ErrValidation = errors.New("correction: validation failed")
