//go:build !windows

package converter

import (
	"context"
	"fmt"

	"docx2pdf/internal/domain"
)

// wordHost drives Microsoft Word, which only exists on Windows.
type wordHost struct{}

func newWordHost() Host { return wordHost{} }

func (wordHost) Name() string { return "word" }

func (wordHost) Check() error {
	return fmt.Errorf("%w: Word automation requires windows, running on %s", domain.ErrUnsupportedPlatform, Platform())
}

func (h wordHost) Open(context.Context) (Session, error) {
	return nil, h.Check()
}
