package converter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	u "docx2pdf/internal/utils"
)

// staged holds the two temporary files of one conversion call.
type staged struct {
	src string
	dst string
}

// stageSource writes data to a fresh temp file with the given extension and
// reserves the matching .pdf path next to it. The output path shares the
// source stem because LibreOffice derives its output name that way.
func stageSource(dir, ext string, data []byte) (*staged, error) {
	f, err := os.CreateTemp(dir, "docx2pdf-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp source: %w", err)
	}
	st := &staged{src: f.Name()}
	st.dst = strings.TrimSuffix(st.src, ext) + ".pdf"

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		st.remove()
		return nil, fmt.Errorf("write temp source: %w", err)
	}
	if err := f.Close(); err != nil {
		st.remove()
		return nil, fmt.Errorf("close temp source: %w", err)
	}
	return st, nil
}

// remove deletes both files; missing files are not an error.
func (s *staged) remove() {
	for _, p := range []string{s.src, s.dst} {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			u.Warn("Removing temp file failed", "path", p, "error", err)
		}
	}
}
