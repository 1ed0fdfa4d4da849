package packager

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docx2pdf/internal/domain"
)

func converted(name, data string) domain.Converted {
	return domain.Converted{Name: name, Source: name + ".docx", Data: []byte(data)}
}

func readArchive(t *testing.T, data []byte) map[string]*zip.File {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	require.Len(t, files, len(zr.File), "archive entry names must be unique")
	return files
}

func TestPackage_SingleInputReturnsPDF(t *testing.T) {
	res, err := Package(1, []domain.Converted{converted("report.pdf", "%PDF-report")}, "")
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", res.Filename)
	assert.Equal(t, ContentTypePDF, res.ContentType)
	assert.Equal(t, []byte("%PDF-report"), res.Data)
	assert.Empty(t, res.Entries)
}

func TestPackage_MultipleInputsReturnStoredZip(t *testing.T) {
	outputs := []domain.Converted{
		converted("a.pdf", "%PDF-a"),
		converted("b.pdf", "%PDF-b"),
		converted("c.pdf", "%PDF-c"),
	}
	res, err := Package(3, outputs, "")
	require.NoError(t, err)

	assert.Equal(t, DefaultArchiveName, res.Filename)
	assert.Equal(t, ContentTypeZIP, res.ContentType)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, res.Entries)

	files := readArchive(t, res.Data)
	require.Len(t, files, 3)
	for _, out := range outputs {
		f, ok := files[out.Name]
		require.True(t, ok, out.Name)
		assert.Equal(t, zip.Store, f.Method)
		rc, err := f.Open()
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, out.Data, got)
	}
}

func TestPackage_MultipleInputsWithOneSurvivorStillZips(t *testing.T) {
	res, err := Package(2, []domain.Converted{converted("a.pdf", "%PDF-a")}, "batch.zip")
	require.NoError(t, err)
	assert.Equal(t, "batch.zip", res.Filename)
	assert.Equal(t, ContentTypeZIP, res.ContentType)
	assert.Len(t, readArchive(t, res.Data), 1)
}

func TestPackage_DuplicateStemsDoNotCollide(t *testing.T) {
	res, err := Package(4, []domain.Converted{
		converted("a.pdf", "1"),
		converted("A.pdf", "2"),
		converted("a.pdf", "3"),
		converted("a (2).pdf", "4"),
	}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "A (2).pdf", "a (3).pdf", "a (2) (2).pdf"}, res.Entries)
	assert.Len(t, readArchive(t, res.Data), 4)
}

func TestPackage_NothingConverted(t *testing.T) {
	_, err := Package(2, nil, "")
	assert.ErrorIs(t, err, ErrNothingConverted)
	_, err = Package(1, []domain.Converted{}, "")
	assert.ErrorIs(t, err, ErrNothingConverted)
}
