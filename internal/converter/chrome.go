package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"docx2pdf/internal/domain"
	u "docx2pdf/internal/utils"
)

// chromeCandidates are tried on PATH when no binary is configured.
var chromeCandidates = []string{
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
}

// ChromeHost renders the document body to HTML and prints it with headless
// Chrome. Layout fidelity is lower than Word or LibreOffice; it exists for
// hosts that only ship a browser.
type ChromeHost struct {
	cfg      u.ConverterConfig
	lookPath func(string) (string, error)
}

// NewChromeHost creates a Chrome backend from the converter settings.
func NewChromeHost(cfg u.ConverterConfig) *ChromeHost {
	return &ChromeHost{cfg: cfg, lookPath: exec.LookPath}
}

func (h *ChromeHost) Name() string { return "chrome" }

func (h *ChromeHost) binary() (string, error) {
	if h.cfg.ChromePath != "" {
		return h.lookPath(h.cfg.ChromePath)
	}
	var lastErr error
	for _, c := range chromeCandidates {
		p, err := h.lookPath(c)
		if err == nil {
			return p, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (h *ChromeHost) Check() error {
	if _, err := h.binary(); err != nil {
		return fmt.Errorf("%w: chrome not found: %v", domain.ErrCapabilityMissing, err)
	}
	return nil
}

// Open starts a browser with a throwaway profile directory.
func (h *ChromeHost) Open(ctx context.Context) (Session, error) {
	bin, err := h.binary()
	if err != nil {
		return nil, fmt.Errorf("%w: chrome not found: %v", domain.ErrCapabilityMissing, err)
	}

	profile, err := os.MkdirTemp("", "docx2pdf-chrome-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(bin),
		chromedp.UserDataDir(profile),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if h.cfg.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		cfg:        h.cfg,
		browserCtx: browserCtx,
		profile:    profile,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}
	// Run without actions launches the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: start chrome: %v", domain.ErrCapabilityMissing, err)
	}
	return s, nil
}

type chromeSession struct {
	cfg        u.ConverterConfig
	browserCtx context.Context
	cancel     context.CancelFunc
	profile    string
}

func (s *chromeSession) Export(ctx context.Context, src, dst string) error {
	docx, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	markup, err := docxToHTML(docx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	// Stop the tab when the caller's deadline passes.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	pdf, err := printHTML(tabCtx, markup, s.cfg.Paper, s.cfg.Margin)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, pdf, 0o600)
}

func (s *chromeSession) Close() error {
	s.cancel()
	return os.RemoveAll(s.profile)
}

// printHTML loads markup into a blank tab and prints it to PDF.
func printHTML(ctx context.Context, markup string, paper u.PaperSize, margin float64) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, markup).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(100*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.Width).
				WithPaperHeight(paper.Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}
