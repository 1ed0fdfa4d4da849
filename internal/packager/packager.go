// Package packager decides how converted PDFs are delivered: a single PDF
// when one file was supplied, otherwise a ZIP of stored entries.
package packager

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"docx2pdf/internal/domain"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypeZIP = "application/zip"

	DefaultArchiveName = "converted_files.zip"
)

// ErrNothingConverted is returned when there are no outputs to deliver.
var ErrNothingConverted = errors.New("no file was converted")

// Result is a ready-to-send download.
type Result struct {
	Filename    string
	ContentType string
	Data        []byte
	// Entries lists the archive entry names; a single PDF has none.
	Entries []string
}

// Package builds the download for a request that supplied inputs files.
func Package(inputs int, outputs []domain.Converted, archiveName string) (Result, error) {
	if len(outputs) == 0 {
		return Result{}, ErrNothingConverted
	}
	if inputs <= 1 && len(outputs) == 1 {
		out := outputs[0]
		return Result{
			Filename:    out.Name,
			ContentType: ContentTypePDF,
			Data:        out.Data,
		}, nil
	}

	if archiveName == "" {
		archiveName = DefaultArchiveName
	}
	data, entries, err := buildArchive(outputs, time.Now())
	if err != nil {
		return Result{}, err
	}
	return Result{
		Filename:    archiveName,
		ContentType: ContentTypeZIP,
		Data:        data,
		Entries:     entries,
	}, nil
}

// buildArchive writes every output as an uncompressed entry. Repeated names
// get " (2)", " (3)", ... before the extension.
func buildArchive(outputs []domain.Converted, modified time.Time) ([]byte, []string, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	used := make(map[string]int, len(outputs))
	entries := make([]string, 0, len(outputs))

	for _, out := range outputs {
		name := uniqueName(out.Name, used)
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("add %s to archive: %w", name, err)
		}
		if _, err := w.Write(out.Data); err != nil {
			return nil, nil, fmt.Errorf("write %s to archive: %w", name, err)
		}
		entries = append(entries, name)
	}
	if err := zw.Close(); err != nil {
		return nil, nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), entries, nil
}

func uniqueName(name string, used map[string]int) string {
	key := strings.ToLower(name)
	n := used[key]
	used[key] = n + 1
	if n == 0 {
		return name
	}
	stem := strings.TrimSuffix(name, ".pdf")
	for {
		n++
		candidate := fmt.Sprintf("%s (%d).pdf", stem, n)
		ckey := strings.ToLower(candidate)
		if used[ckey] == 0 {
			used[ckey] = 1
			used[key] = n
			return candidate
		}
	}
}
