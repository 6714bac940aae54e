package common

import (
	"context"
	"errors"
	"fmt"
)

// Error taxonomy of the restructuring engine. Errors are wrapped with
// context and matched with errors.Is.
var (
	// ErrMissingOutline - source has no table of contents, split is impossible.
	ErrMissingOutline = errors.New("source has no table of contents")
	// ErrUnresolvedResource - embedded resource reference could not be repaired.
	ErrUnresolvedResource = errors.New("unresolved resource reference")
	// ErrRender - rendering collaborator failed.
	ErrRender = errors.New("rendering failed")
	// ErrIO - write or extraction error.
	ErrIO = errors.New("i/o failure")
	// ErrCancelled - user aborted processing.
	ErrCancelled = errors.New("cancelled by user")
)

// CheckCancelled is a cooperative cancellation checkpoint. It returns
// ErrCancelled wrapping context error when ctx is done.
func CheckCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return nil
}

// IsCancelled reports whether err is the result of user cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IOError wraps err as ErrIO unless it already carries a classification.
func IOError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if IsCancelled(err) || errors.Is(err, ErrRender) || errors.Is(err, ErrIO) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrIO, err)
}
