// Package converter implements the converter shim: it stages uploaded bytes
// in temporary files, drives a host conversion capability and reads the PDF
// back. Backends are selected by name from the configuration.
package converter

import (
	"context"
	"fmt"
	"runtime"

	u "docx2pdf/internal/utils"
)

// Host is a platform conversion capability such as Word automation or a
// LibreOffice install.
type Host interface {
	// Name returns the backend name used in logs and cache keys.
	Name() string
	// Check probes whether the capability exists on this machine without
	// starting it.
	Check() error
	// Open initialises the capability for one conversion. The returned
	// session must be closed on the same goroutine.
	Open(ctx context.Context) (Session, error)
}

// Session is an initialised host capability. It is only valid until Close.
type Session interface {
	// Export converts the document at src into a PDF written to dst.
	Export(ctx context.Context, src, dst string) error
	Close() error
}

// NewHost builds the backend selected by cfg.Backend.
func NewHost(cfg u.ConverterConfig) (Host, error) {
	switch cfg.Backend {
	case u.BackendWord, "":
		return newWordHost(), nil
	case u.BackendLibreOffice:
		return NewLibreOfficeHost(cfg.SofficePath), nil
	case u.BackendChrome:
		return NewChromeHost(cfg), nil
	default:
		return nil, fmt.Errorf("unknown converter backend %q", cfg.Backend)
	}
}

// withSession opens a session, runs fn and always closes the session again.
func withSession(ctx context.Context, host Host, fn func(Session) error) (err error) {
	s, err := host.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			u.Warn("Closing conversion session failed", "backend", host.Name(), "error", cerr)
			if err == nil {
				err = fmt.Errorf("close %s session: %w", host.Name(), cerr)
			}
		}
	}()
	return fn(s)
}

// Platform returns the operating system this process runs on.
func Platform() string {
	return runtime.GOOS
}
