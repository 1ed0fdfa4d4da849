package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"docx2pdf/internal/domain"
)

// sofficeCandidates are tried on PATH when no binary is configured.
var sofficeCandidates = []string{"soffice", "libreoffice"}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args ...string) (output []byte, err error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (osExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// LibreOfficeHost converts with a headless soffice process per session.
type LibreOfficeHost struct {
	path string
	exec executor
}

// NewLibreOfficeHost uses path, or looks soffice up on PATH when empty.
func NewLibreOfficeHost(path string) *LibreOfficeHost {
	return &LibreOfficeHost{path: path, exec: osExecutor{}}
}

func (h *LibreOfficeHost) Name() string { return "libreoffice" }

func (h *LibreOfficeHost) binary() (string, error) {
	if h.path != "" {
		return h.exec.LookPath(h.path)
	}
	var lastErr error
	for _, c := range sofficeCandidates {
		p, err := h.exec.LookPath(c)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (h *LibreOfficeHost) Check() error {
	if _, err := h.binary(); err != nil {
		return fmt.Errorf("%w: soffice not found: %v", domain.ErrCapabilityMissing, err)
	}
	return nil
}

// Open creates a private LibreOffice user profile so the headless process
// never collides with a desktop instance or an earlier run.
func (h *LibreOfficeHost) Open(ctx context.Context) (Session, error) {
	bin, err := h.binary()
	if err != nil {
		return nil, fmt.Errorf("%w: soffice not found: %v", domain.ErrCapabilityMissing, err)
	}
	profile, err := os.MkdirTemp("", "docx2pdf-lo-*")
	if err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	return &libreOfficeSession{bin: bin, profile: profile, exec: h.exec}, nil
}

type libreOfficeSession struct {
	bin     string
	profile string
	exec    executor
}

func (s *libreOfficeSession) Export(ctx context.Context, src, dst string) error {
	outDir := filepath.Dir(dst)
	profileURL := url.URL{Scheme: "file", Path: filepath.ToSlash(s.profile)}
	if !strings.HasPrefix(profileURL.Path, "/") {
		// Windows drive paths need a leading slash: file:///C:/...
		profileURL.Path = "/" + profileURL.Path
	}

	out, err := s.exec.Run(ctx, s.bin,
		"-env:UserInstallation="+profileURL.String(),
		"--headless",
		"--norestore",
		"--nolockcheck",
		"--convert-to", "pdf",
		"--outdir", outDir,
		src,
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: soffice: %v: %s", domain.ErrConversionFailed, err, strings.TrimSpace(string(out)))
	}

	// soffice exits 0 even when it could not load the document.
	produced := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".pdf")
	if produced != dst {
		if err := os.Rename(produced, dst); err != nil {
			return fmt.Errorf("%w: move output: %v", domain.ErrConversionFailed, err)
		}
	}
	if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: soffice produced no output: %s", domain.ErrConversionFailed, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *libreOfficeSession) Close() error {
	return os.RemoveAll(s.profile)
}
