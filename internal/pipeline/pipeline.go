// Package pipeline runs a batch of uploads through a DocumentConverter one
// file at a time. A failing file is reported and the batch continues.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"docx2pdf/internal/domain"
	u "docx2pdf/internal/utils"
)

// Result is the outcome of one upload.
type Result struct {
	Upload   domain.Upload
	Output   *domain.Converted
	Err      error
	Duration time.Duration
}

// Observer receives each result as soon as the file is done.
type Observer func(Result)

// Batch holds what a run produced, in input order.
type Batch struct {
	Inputs  int
	Outputs []domain.Converted
	Errors  []*domain.FileError
}

// Failed reports whether any file was not converted.
func (b Batch) Failed() bool {
	return len(b.Errors) > 0
}

// Run converts uploads sequentially. Uploads with the wrong extension or
// without content never reach the converter.
func Run(ctx context.Context, conv domain.DocumentConverter, uploads []domain.Upload, observe Observer) Batch {
	batch := Batch{Inputs: len(uploads)}

	for _, up := range uploads {
		res := convertOne(ctx, conv, up)
		if res.Err != nil {
			batch.Errors = append(batch.Errors, &domain.FileError{Name: up.Name, Err: res.Err})
			u.Warn("File not converted", "file", up.Name, "error", res.Err)
		} else {
			batch.Outputs = append(batch.Outputs, *res.Output)
			u.Info("File converted", "file", up.Name, "output", res.Output.Name, "bytes", len(res.Output.Data), "duration_ms", res.Duration.Milliseconds())
		}
		if observe != nil {
			observe(res)
		}
	}
	return batch
}

func convertOne(ctx context.Context, conv domain.DocumentConverter, up domain.Upload) Result {
	res := Result{Upload: up}

	format := up.Format()
	if !domain.IsSourceFormat(format) || domain.Stem(up.Name) == "" {
		res.Err = fmt.Errorf("%w: %s skipped", domain.ErrUnsupportedFormat, domain.BaseName(up.Name))
		return res
	}
	if len(up.Data) == 0 {
		res.Err = domain.ErrEmptyUpload
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	start := time.Now()
	pdf, err := conv.Convert(ctx, up.Data, format)
	res.Duration = time.Since(start)
	if err != nil {
		res.Err = err
		return res
	}
	res.Output = &domain.Converted{
		Name:   domain.OutputName(up.Name),
		Source: up.Name,
		Data:   pdf,
	}
	return res
}
