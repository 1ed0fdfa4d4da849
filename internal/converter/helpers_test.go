package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
)

// minimalPDF builds a one-page PDF with a correct xref table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// buildDocx packs body (the children of w:body) into a minimal .docx.
func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create document.xml: %v", err)
	}
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
	return buf.Bytes()
}

// fakeHost records how the shim drives it and writes output on Export.
type fakeHost struct {
	checkErr  error
	openErr   error
	exportErr error
	output    []byte

	opened, closed int
	srcData        []byte
	paths          []string
}

func (h *fakeHost) Name() string { return "fake" }

func (h *fakeHost) Check() error { return h.checkErr }

func (h *fakeHost) Open(ctx context.Context) (Session, error) {
	if h.openErr != nil {
		return nil, h.openErr
	}
	h.opened++
	return &fakeSession{host: h}, nil
}

type fakeSession struct {
	host *fakeHost
}

func (s *fakeSession) Export(ctx context.Context, src, dst string) error {
	s.host.paths = append(s.host.paths, src, dst)
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	s.host.srcData = data
	if s.host.exportErr != nil {
		// leave a partial file behind to prove it gets cleaned up
		_ = os.WriteFile(dst, []byte("partial"), 0o600)
		return s.host.exportErr
	}
	return os.WriteFile(dst, s.host.output, 0o600)
}

func (s *fakeSession) Close() error {
	s.host.closed++
	return nil
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected no temp artifacts, found %v", names)
	}
}

// minimalZip is a valid zip that is not a Word document.
func minimalZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if _, err := zw.Create("[Content_Types].xml"); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
