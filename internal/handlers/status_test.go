package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docx2pdf/internal/domain"
	"docx2pdf/internal/store"
)

func TestHandleStatus(t *testing.T) {
	conv := &stubConverter{}
	app := newTestApp(NewConvertService(testConvertCfg(), nil, conv, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/converter/status", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "stub", body["backend"])
	assert.Equal(t, runtime.GOOS, body["platform"])
	assert.Equal(t, true, body["available"])
	assert.Equal(t, false, body["cache_enabled"])
	assert.NotContains(t, body, "error")

	conv.checkErr = domain.ErrUnsupportedPlatform
	resp, err = app.Test(httptest.NewRequest("GET", "/v1/converter/status", nil))
	require.NoError(t, err)
	body = map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["available"])
	assert.Equal(t, "unsupported platform", body["error"])
}

func TestHandleHistory(t *testing.T) {
	hist := &fakeHistory{recent: []store.Conversion{
		{ID: "2", FileName: "b.docx", Status: store.StatusFailed, DurationMS: 1500, CreatedAt: time.Now()},
		{ID: "1", FileName: "a.docx", Status: store.StatusConverted, CreatedAt: time.Now()},
	}}
	app := newTestApp(NewConvertService(testConvertCfg(), nil, &stubConverter{}, hist))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/history?limit=1", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"duration_ms":1500`)

	var body struct {
		Conversions []store.Conversion `json:"conversions"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Conversions, 1)
	assert.Equal(t, "b.docx", body.Conversions[0].FileName)
	assert.Equal(t, int64(1500), body.Conversions[0].DurationMS)

	resp, err = app.Test(httptest.NewRequest("GET", "/v1/history?limit=0", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	hist.err = errors.New("db down")
	resp, err = app.Test(httptest.NewRequest("GET", "/v1/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandleHistory_Disabled(t *testing.T) {
	app := newTestApp(NewConvertService(testConvertCfg(), nil, &stubConverter{}, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHandleForm(t *testing.T) {
	app := newTestApp(NewConvertService(testConvertCfg(), nil, &stubConverter{}, nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")

	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), `name="files"`)
	assert.Contains(t, string(page), `accept=".docx"`)
	assert.Contains(t, string(page), "multiple")
	assert.Contains(t, string(page), "Confirm Conversion")
	assert.Contains(t, string(page), `filename\*=utf-8''`)
}
