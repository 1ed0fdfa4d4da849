package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docx2pdf/internal/domain"
)

// stubConverter returns "%PDF-" plus the input, or fails for listed inputs.
type stubConverter struct {
	fail  map[string]error
	calls []string
}

func (s *stubConverter) Convert(ctx context.Context, data []byte, sourceFormat string) ([]byte, error) {
	s.calls = append(s.calls, string(data))
	if err, ok := s.fail[string(data)]; ok {
		return nil, err
	}
	return append([]byte("%PDF-"), data...), nil
}

func TestRun_ConvertsInOrderAndContinuesAfterFailures(t *testing.T) {
	conv := &stubConverter{fail: map[string]error{"b": domain.ErrConversionFailed}}
	uploads := []domain.Upload{
		{Name: "a.docx", Data: []byte("a")},
		{Name: "notes.txt", Data: []byte("txt")},
		{Name: "b.docx", Data: []byte("b")},
		{Name: "empty.docx"},
		{Name: "C.DOCX", Data: []byte("c")},
	}

	var seen []string
	batch := Run(context.Background(), conv, uploads, func(r Result) {
		seen = append(seen, r.Upload.Name)
	})

	assert.Equal(t, 5, batch.Inputs)
	assert.Equal(t, []string{"a", "b", "c"}, conv.calls, "wrong type and empty files never reach the converter")
	assert.Equal(t, []string{"a.docx", "notes.txt", "b.docx", "empty.docx", "C.DOCX"}, seen)

	require.Len(t, batch.Outputs, 2)
	assert.Equal(t, "a.pdf", batch.Outputs[0].Name)
	assert.Equal(t, "a.docx", batch.Outputs[0].Source)
	assert.Equal(t, []byte("%PDF-a"), batch.Outputs[0].Data)
	assert.Equal(t, "C.pdf", batch.Outputs[1].Name)

	require.Len(t, batch.Errors, 3)
	assert.True(t, batch.Failed())
	assert.Equal(t, "notes.txt", batch.Errors[0].Name)
	assert.ErrorIs(t, batch.Errors[0], domain.ErrUnsupportedFormat)
	assert.Contains(t, batch.Errors[0].Error(), "notes.txt skipped")
	assert.ErrorIs(t, batch.Errors[1], domain.ErrConversionFailed)
	assert.ErrorIs(t, batch.Errors[2], domain.ErrEmptyUpload)
}

func TestRun_CanceledContextStopsConversions(t *testing.T) {
	conv := &stubConverter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := Run(ctx, conv, []domain.Upload{{Name: "a.docx", Data: []byte("a")}}, nil)
	assert.Empty(t, conv.calls)
	require.Len(t, batch.Errors, 1)
	assert.True(t, errors.Is(batch.Errors[0], context.Canceled))
}

func TestRun_AllValid(t *testing.T) {
	batch := Run(context.Background(), &stubConverter{}, []domain.Upload{
		{Name: "one.docx", Data: []byte("1")},
		{Name: "two.docx", Data: []byte("2")},
	}, nil)
	assert.False(t, batch.Failed())
	assert.Len(t, batch.Outputs, 2)
}

func TestRun_NameWithoutStemIsUnsupported(t *testing.T) {
	conv := &stubConverter{}
	batch := Run(context.Background(), conv, []domain.Upload{
		{Name: ".docx", Data: []byte("x")},
		{Name: `dir\.DOCX`, Data: []byte("y")},
	}, nil)

	assert.Empty(t, conv.calls)
	assert.Empty(t, batch.Outputs)
	require.Len(t, batch.Errors, 2)
	for _, fe := range batch.Errors {
		assert.ErrorIs(t, fe, domain.ErrUnsupportedFormat)
	}
}
