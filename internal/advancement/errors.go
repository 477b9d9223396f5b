package advancement

import (
	stderrors "errors"
	"fmt"

	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// AdvancementError is returned by a lifecycle call that cannot proceed with
// the input it was given. The progression workflow treats it as a prompt to
// collect input again rather than as a system failure.
type AdvancementError struct {
	AdvancementID string
	Type          string
	Level         int
	Err           *errors.Error
}

// Error implements the error interface
func (e *AdvancementError) Error() string {
	return fmt.Sprintf("advancement %s (%s) level %d: %s", e.AdvancementID, e.Type, e.Level, e.Err.Error())
}

// Unwrap exposes the coded error
func (e *AdvancementError) Unwrap() error {
	return e.Err
}

// AsAdvancementError extracts an AdvancementError from err's chain
func AsAdvancementError(err error) (*AdvancementError, bool) {
	var advErr *AdvancementError
	if stderrors.As(err, &advErr) {
		return advErr, true
	}
	return nil, false
}

// IsAdvancementError reports whether err carries an AdvancementError
func IsAdvancementError(err error) bool {
	_, ok := AsAdvancementError(err)
	return ok
}

// InvalidRecordError describes a persisted record that could not be turned
// into a live Advancement.
type InvalidRecordError struct {
	ID    string
	Type  string
	Cause error
}

// Error implements the error interface
func (e *InvalidRecordError) Error() string {
	return fmt.Sprintf("invalid advancement record %s (%s): %v", e.ID, e.Type, e.Cause)
}

// Unwrap returns the cause
func (e *InvalidRecordError) Unwrap() error {
	return e.Cause
}

func invalidRecord(id, advType string, cause error) *InvalidRecordError {
	return &InvalidRecordError{ID: id, Type: advType, Cause: cause}
}
