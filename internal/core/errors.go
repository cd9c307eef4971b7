package core

import (
	"errors"
	"fmt"
)

// ErrNotEnoughParts is recorded for lines with fewer than two tokens.
var ErrNotEnoughParts = errors.New("Not enough parts to extract status code")

// FileAccessError reports that a log file could not be opened or read.
// It is the only failure that aborts an analysis.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("accessing log file %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// LineParseError reports a single line whose status code could not be
// extracted. Its message is the underlying cause so it can be shown as is.
type LineParseError struct {
	Line int
	Err  error
}

func (e *LineParseError) Error() string {
	return e.Err.Error()
}

func (e *LineParseError) Unwrap() error {
	return e.Err
}
