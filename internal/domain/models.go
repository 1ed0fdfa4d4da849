package domain

import (
	"context"
	"path/filepath"
	"strings"
)

// SourceFormat is the only extension accepted for conversion.
const SourceFormat = ".docx"

// Upload is one file received from the client.
type Upload struct {
	Name string
	Data []byte
}

// Format returns the upload's extension, lower-cased.
func (u Upload) Format() string {
	return strings.ToLower(filepath.Ext(BaseName(u.Name)))
}

// Converted is the PDF produced for one upload.
type Converted struct {
	Name   string
	Source string
	Data   []byte
}

// DocumentConverter turns the bytes of a document in sourceFormat into PDF
// bytes. Implementations never return partial output alongside an error.
type DocumentConverter interface {
	Convert(ctx context.Context, data []byte, sourceFormat string) ([]byte, error)
}

// IsSourceFormat reports whether ext names the accepted input format.
func IsSourceFormat(ext string) bool {
	return strings.EqualFold(ext, SourceFormat)
}

// Stem returns the file name without directory and extension.
func Stem(name string) string {
	base := BaseName(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputName derives "<stem>.pdf" from an input file name.
func OutputName(name string) string {
	return Stem(name) + ".pdf"
}

// BaseName strips any client supplied directory, with either separator.
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
