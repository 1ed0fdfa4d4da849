package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"docx2pdf/internal/domain"
	"docx2pdf/internal/packager"
	"docx2pdf/internal/pipeline"
	"docx2pdf/internal/store"
	u "docx2pdf/internal/utils"
)

const (
	// FormField is the multipart field carrying the uploaded documents.
	FormField = "files"

	HeaderConversionErrors = "X-Conversion-Errors"
	HeaderConversionFailed = "X-Conversion-Failed"
)

// Converter is the conversion backend as the HTTP layer sees it.
type Converter interface {
	domain.DocumentConverter
	Backend() string
	Check() error
}

// HistoryStore persists per-file outcomes.
type HistoryStore interface {
	Record(ctx context.Context, c store.Conversion) error
	Recent(ctx context.Context, limit int) ([]store.Conversion, error)
}

// ConvertService bundles configuration and dependencies for the upload flow.
type ConvertService struct {
	Config    *u.Config
	Redis     *redis.Client
	Converter Converter
	History   HistoryStore

	flight singleflight.Group
}

// NewConvertService creates a new ConvertService. rdb and history may be nil.
func NewConvertService(cfg u.Config, rdb *redis.Client, conv Converter, history HistoryStore) *ConvertService {
	return &ConvertService{
		Config:    &cfg,
		Redis:     rdb,
		Converter: conv,
		History:   history,
	}
}

// fileReport is one entry of the per-file error list sent to clients.
type fileReport struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// HandleConvert converts every uploaded .docx and answers with one PDF or a
// ZIP of PDFs. Files that fail are listed in X-Conversion-Errors.
func (svc *ConvertService) HandleConvert(c *fiber.Ctx) error {
	files, err := svc.formFiles(c)
	if err != nil {
		return err
	}

	requestID := requestIDFrom(c)
	ctx := c.UserContext()

	uploads, intakeErrs := svc.readUploads(files)
	for _, fe := range intakeErrs {
		svc.record(ctx, requestID, pipeline.Result{Upload: domain.Upload{Name: fe.Name}, Err: fe.Err})
	}

	batch := pipeline.Run(ctx, svc.cached(), uploads, func(r pipeline.Result) {
		svc.record(ctx, requestID, r)
	})

	failures := append(intakeErrs, batch.Errors...)
	outputs := batch.Outputs

	inputs := len(files)
	res, err := packager.Package(inputs, outputs, svc.Config.Converter.ArchiveName)
	if errors.Is(err, packager.ErrNothingConverted) {
		return nothingConverted(c, inputs, failures)
	}
	if err != nil {
		u.Error("Packaging failed", "error", err, "request_id", requestID)
		return fiber.NewError(fiber.StatusInternalServerError, "Packaging failed: "+err.Error())
	}

	setFailureHeaders(c, failures)
	u.Info("Conversion delivered", "filename", res.Filename, "inputs", inputs, "converted", len(outputs), "failed", len(failures), "request_id", requestID)

	c.Set(fiber.HeaderContentDisposition, contentDisposition(res.Filename))
	c.Set(fiber.HeaderContentType, res.ContentType)
	return c.Send(res.Data)
}

// contentDisposition marks the response as a download. Names outside ASCII
// use the RFC 2231 filename* form.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func (svc *ConvertService) formFiles(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid upload: expected multipart/form-data with field '"+FormField+"'")
	}
	files := form.File[FormField]
	if len(files) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No files uploaded")
	}
	if len(files) > svc.Config.Limits.MaxFiles {
		return nil, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Too many files: at most %d per request", svc.Config.Limits.MaxFiles))
	}
	return files, nil
}

// readUploads loads every file into memory. Files over the size limit or
// that cannot be read become per-file errors.
func (svc *ConvertService) readUploads(files []*multipart.FileHeader) ([]domain.Upload, []*domain.FileError) {
	limit := int64(svc.Config.Limits.MaxUploadBytes)
	uploads := make([]domain.Upload, 0, len(files))
	var errs []*domain.FileError

	for _, fh := range files {
		name := domain.BaseName(fh.Filename)
		if fh.Size > limit {
			errs = append(errs, &domain.FileError{Name: name, Err: domain.ErrUploadTooLarge})
			continue
		}
		data, err := readFileHeader(fh, limit)
		if err != nil {
			errs = append(errs, &domain.FileError{Name: name, Err: err})
			continue
		}
		uploads = append(uploads, domain.Upload{Name: name, Data: data})
	}
	return uploads, errs
}

func readFileHeader(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, domain.ErrUploadTooLarge
	}
	return data, nil
}

func (svc *ConvertService) record(ctx context.Context, requestID string, r pipeline.Result) {
	if svc.History == nil {
		return
	}
	rec := store.Conversion{
		RequestID:  requestID,
		FileName:   r.Upload.Name,
		InputBytes: int64(len(r.Upload.Data)),
		DurationMS: r.Duration.Milliseconds(),
		Backend:    svc.Converter.Backend(),
		Status:     store.StatusConverted,
	}
	if r.Err != nil {
		rec.Status = store.StatusFailed
		rec.Error = r.Err.Error()
	}
	if r.Output != nil {
		rec.OutputName = r.Output.Name
		rec.OutputBytes = int64(len(r.Output.Data))
	}
	if err := svc.History.Record(ctx, rec); err != nil {
		u.Warn("Recording conversion failed", "file", rec.FileName, "error", err)
	}
}

// nothingConverted answers when no output survived. A single file keeps the
// status of its own failure; a batch answers 422 with every failure listed.
func nothingConverted(c *fiber.Ctx, inputs int, failures []*domain.FileError) error {
	if inputs == 1 && len(failures) == 1 {
		return fiber.NewError(statusFor(failures[0].Err), failures[0].Error())
	}
	setFailureHeaders(c, failures)
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusUnprocessableEntity,
			"message": "No file could be converted",
		},
		"files": reports(failures),
	})
}

// statusFor maps a per-file error to the HTTP status used when it is the
// only outcome of a request.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusRequestTimeout
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrEmptyUpload):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUploadTooLarge), errors.Is(err, domain.ErrOutputTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrUnsupportedPlatform):
		return fiber.StatusNotImplemented
	case errors.Is(err, domain.ErrCapabilityMissing):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func reports(failures []*domain.FileError) []fileReport {
	out := make([]fileReport, 0, len(failures))
	for _, f := range failures {
		out = append(out, fileReport{File: f.Name, Error: f.Err.Error()})
	}
	return out
}

// setFailureHeaders lists failures as URL-escaped JSON so file names of any
// script survive the ASCII-only header.
func setFailureHeaders(c *fiber.Ctx, failures []*domain.FileError) {
	c.Set(HeaderConversionFailed, strconv.Itoa(len(failures)))
	if len(failures) == 0 {
		return
	}
	raw, err := json.Marshal(reports(failures))
	if err != nil {
		u.Warn("Encoding conversion errors failed", "error", err)
		return
	}
	c.Set(HeaderConversionErrors, url.PathEscape(string(raw)))
}

func requestIDFrom(c *fiber.Ctx) string {
	if id := c.Get(fiber.HeaderXRequestID); id != "" {
		return id
	}
	return c.GetRespHeader(fiber.HeaderXRequestID)
}
