//go:build windows

package converter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"golang.org/x/sys/windows/registry"

	"docx2pdf/internal/domain"
)

const (
	wordProgID = "Word.Application"
	// wdFormatPDF is the WdSaveFormat value for PDF.
	wdFormatPDF = 17
	// wdDoNotSaveChanges is the WdSaveOptions value used when closing.
	wdDoNotSaveChanges = 0
	// sFalse is returned by CoInitializeEx when COM is already initialised
	// on the thread; it still has to be balanced by CoUninitialize.
	sFalse = 0x00000001
)

// wordHost drives Microsoft Word through COM automation.
type wordHost struct {
	once     sync.Once
	probeErr error
}

func newWordHost() Host { return &wordHost{} }

func (h *wordHost) Name() string { return "word" }

// Check looks up the Word ProgID in the registry once.
func (h *wordHost) Check() error {
	h.once.Do(func() {
		k, err := registry.OpenKey(registry.CLASSES_ROOT, wordProgID+`\CLSID`, registry.QUERY_VALUE)
		if err != nil {
			h.probeErr = fmt.Errorf("%w: %s is not registered: %v", domain.ErrCapabilityMissing, wordProgID, err)
			return
		}
		k.Close()
	})
	return h.probeErr
}

// Open initialises COM on a locked OS thread and starts a hidden Word
// instance. Close undoes both, on the same goroutine.
func (h *wordHost) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runtime.LockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("%w: CoInitializeEx: %v", domain.ErrCapabilityMissing, err)
		}
	}

	unknown, err := oleutil.CreateObject(wordProgID)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: create %s: %v", domain.ErrCapabilityMissing, wordProgID, err)
	}
	app, err := unknown.QueryInterface(ole.IID_IDispatch)
	unknown.Release()
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("%w: query IDispatch: %v", domain.ErrCapabilityMissing, err)
	}

	_, _ = oleutil.PutProperty(app, "Visible", false)
	_, _ = oleutil.PutProperty(app, "DisplayAlerts", 0)
	return &wordSession{app: app}, nil
}

type wordSession struct {
	app *ole.IDispatch
}

func (s *wordSession) Export(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	docsVar, err := oleutil.GetProperty(s.app, "Documents")
	if err != nil {
		return fmt.Errorf("get Documents: %w", err)
	}
	docs := docsVar.ToIDispatch()
	defer docs.Release()

	// Open(FileName, ConfirmConversions, ReadOnly)
	docVar, err := oleutil.CallMethod(docs, "Open", src, false, true)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	doc := docVar.ToIDispatch()
	defer doc.Release()

	_, saveErr := oleutil.CallMethod(doc, "SaveAs2", dst, wdFormatPDF)
	_, closeErr := oleutil.CallMethod(doc, "Close", wdDoNotSaveChanges)
	if saveErr != nil {
		return fmt.Errorf("save as PDF: %w", saveErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close document: %w", closeErr)
	}
	return nil
}

func (s *wordSession) Close() error {
	_, err := oleutil.CallMethod(s.app, "Quit", wdDoNotSaveChanges)
	s.app.Release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	if err != nil {
		return fmt.Errorf("quit Word: %w", err)
	}
	return nil
}
