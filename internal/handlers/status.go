package handlers

import (
	"runtime"

	"github.com/gofiber/fiber/v2"

	u "docx2pdf/internal/utils"
)

const maxHistoryLimit = 500

// HandleStatus reports whether the configured backend can convert on this host.
func (svc *ConvertService) HandleStatus(c *fiber.Ctx) error {
	status := fiber.Map{
		"backend":          svc.Converter.Backend(),
		"platform":         runtime.GOOS,
		"available":        true,
		"validate_output":  svc.Config.Converter.ValidateOutput,
		"timeout_secs":     svc.Config.Converter.TimeoutSecs,
		"cache_enabled":    svc.Redis != nil && svc.Config.Cache.PDFCacheEnabled,
		"history_enabled":  svc.History != nil,
		"max_files":        svc.Config.Limits.MaxFiles,
		"max_upload_bytes": svc.Config.Limits.MaxUploadBytes,
	}
	if err := svc.Converter.Check(); err != nil {
		status["available"] = false
		status["error"] = err.Error()
	}
	return c.JSON(status)
}

// HandleHistory lists the most recent conversions, newest first.
func (svc *ConvertService) HandleHistory(c *fiber.Ctx) error {
	if svc.History == nil {
		return fiber.NewError(fiber.StatusNotFound, "Conversion history is disabled")
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > maxHistoryLimit {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid limit: must be between 1 and 500")
	}

	rows, err := svc.History.Recent(c.UserContext(), limit)
	if err != nil {
		u.Error("Reading history failed", "error", err)
		return fiber.NewError(fiber.StatusServiceUnavailable, "Conversion history unavailable")
	}
	return c.JSON(fiber.Map{"conversions": rows})
}
