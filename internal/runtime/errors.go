package runtime

import (
	"errors"
	"fmt"
)

var (
	ErrRuntime        = errors.New("runtime error")
	ErrEmptyArchive   = errors.New("archive contains no image")
	ErrMultipleImages = errors.New("archive contains multiple images")
	ErrEmptyIndex     = errors.New("empty image index")
)

// Wraps an error under [ErrRuntime].
func wrap(err error) error {
	return fmt.Errorf("%w: %w", ErrRuntime, err)
}

// Wraps a formatted message under [ErrRuntime].
func wrapf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRuntime, fmt.Sprintf(format, args...))
}
