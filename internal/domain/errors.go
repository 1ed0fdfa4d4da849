package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform signals that the configured backend cannot run on
	// this operating system.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrCapabilityMissing signals that the host automation service or tool
	// the backend drives is not installed or cannot be started.
	ErrCapabilityMissing = errors.New("host conversion capability missing")
	// ErrConversionFailed wraps any runtime error of the conversion tool.
	ErrConversionFailed = errors.New("conversion failed")
	// ErrUnsupportedFormat signals an input that is not a Word document.
	ErrUnsupportedFormat = errors.New("only Word files (.docx) are supported")
	// ErrEmptyUpload signals an upload without content.
	ErrEmptyUpload = errors.New("uploaded file is empty")
	// ErrUploadTooLarge signals an upload over the configured size limit.
	ErrUploadTooLarge = errors.New("uploaded file exceeds allowed size")
	// ErrOutputTooLarge signals a produced PDF over the configured size limit.
	ErrOutputTooLarge = errors.New("PDF exceeds allowed size")
)

// FileError ties a failure to the uploaded file it stopped.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
