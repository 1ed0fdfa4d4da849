package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"docx2pdf/internal/domain"
	u "docx2pdf/internal/utils"
)

// Options tune a Shim.
type Options struct {
	// TempDir holds the staged files; empty means os.TempDir().
	TempDir string
	// Timeout bounds one conversion call; zero disables it.
	Timeout time.Duration
	// ValidateOutput parses every produced PDF with pdfcpu.
	ValidateOutput bool
}

// Shim is the DocumentConverter backed by a Host. Calls are serialised: the
// host capability is never driven by two conversions at once.
type Shim struct {
	host Host
	opts Options

	mu sync.Mutex
}

var _ domain.DocumentConverter = (*Shim)(nil)

// NewShim creates a shim around host.
func NewShim(host Host, opts Options) *Shim {
	return &Shim{host: host, opts: opts}
}

// NewFromConfig builds the configured backend and wraps it in a Shim.
func NewFromConfig(cfg u.ConverterConfig) (*Shim, error) {
	host, err := NewHost(cfg)
	if err != nil {
		return nil, err
	}
	return NewShim(host, Options{
		TempDir:        cfg.TempDir,
		Timeout:        cfg.Timeout(),
		ValidateOutput: cfg.ValidateOutput,
	}), nil
}

// Backend returns the name of the host backend.
func (s *Shim) Backend() string {
	return s.host.Name()
}

// Check probes the host capability.
func (s *Shim) Check() error {
	return s.host.Check()
}

// Convert stages data in a temp file, exports it to PDF through a fresh host
// session and returns the PDF bytes. Both temp files are gone when it returns.
func (s *Shim) Convert(ctx context.Context, data []byte, sourceFormat string) ([]byte, error) {
	if !domain.IsSourceFormat(sourceFormat) {
		return nil, fmt.Errorf("%w: got %q", domain.ErrUnsupportedFormat, sourceFormat)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyUpload
	}
	if err := s.host.Check(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	st, err := stageSource(s.opts.TempDir, strings.ToLower(sourceFormat), data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}
	defer st.remove()

	start := time.Now()
	err = withSession(ctx, s.host, func(sess Session) error {
		return sess.Export(ctx, st.src, st.dst)
	})
	if err != nil {
		return nil, classify(ctx, err)
	}

	out, err := os.ReadFile(st.dst)
	if err != nil {
		return nil, fmt.Errorf("%w: read output: %v", domain.ErrConversionFailed, err)
	}
	pages, err := checkPDF(out, s.opts.ValidateOutput)
	if err != nil {
		return nil, err
	}

	u.Debug("Document exported", "backend", s.host.Name(), "bytes", len(out), "pages", pages, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// classify keeps capability errors and deadlines recognisable and files
// everything else under ErrConversionFailed.
func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrUnsupportedPlatform),
		errors.Is(err, domain.ErrCapabilityMissing),
		errors.Is(err, domain.ErrConversionFailed):
		return err
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %w", domain.ErrConversionFailed, ctx.Err())
	default:
		return fmt.Errorf("%w: %w", domain.ErrConversionFailed, err)
	}
}
