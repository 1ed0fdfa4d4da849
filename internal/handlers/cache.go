package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"docx2pdf/internal/domain"
	u "docx2pdf/internal/utils"
)

// cachedConverter serves repeated uploads from Redis and collapses
// concurrent conversions of the same document into one backend call.
type cachedConverter struct {
	svc *ConvertService
}

func (svc *ConvertService) cached() domain.DocumentConverter {
	return cachedConverter{svc: svc}
}

func (cc cachedConverter) Convert(ctx context.Context, data []byte, sourceFormat string) ([]byte, error) {
	svc := cc.svc
	useCache := svc.Redis != nil && svc.Config.Cache.PDFCacheEnabled
	key := computePDFCacheKey(svc.Converter.Backend(), sourceFormat, data)

	if useCache {
		if cached, err := getCachedPDF(ctx, svc.Redis, key); err == nil && cached != nil {
			if err := svc.checkPDFSize(cached); err != nil {
				return nil, err
			}
			return cached, nil
		}
	}

	// Joined callers wait on this call; one of them leaving must not cancel it.
	shared := context.WithoutCancel(ctx)
	v, err, joined := svc.flight.Do(key, func() (any, error) {
		pdf, err := svc.Converter.Convert(shared, data, sourceFormat)
		if err != nil {
			return nil, err
		}
		if err := svc.checkPDFSize(pdf); err != nil {
			return nil, err
		}
		if useCache {
			setCachedPDF(shared, svc.Redis, key, pdf, svc.Config.Cache.PDFCacheTTL)
		}
		return pdf, nil
	})
	if err != nil {
		return nil, err
	}
	if joined {
		u.Debug("Conversion shared with concurrent request", "key", key)
	}
	return v.([]byte), nil
}

func (svc *ConvertService) checkPDFSize(pdf []byte) error {
	if max := svc.Config.Limits.MaxPDFBytes; len(pdf) > max {
		return fmt.Errorf("%w of %d bytes", domain.ErrOutputTooLarge, max)
	}
	return nil
}

// computePDFCacheKey hashes everything that changes the produced PDF.
func computePDFCacheKey(backend, sourceFormat string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(sourceFormat)))
	h.Write([]byte{0})
	h.Write(data)
	return "docx2pdf:" + hex.EncodeToString(h.Sum(nil))
}

// getCachedPDF returns nil without error on a cache miss.
func getCachedPDF(ctx context.Context, rdb *redis.Client, key string) ([]byte, error) {
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	cached, err := rdb.Get(ctxRedis, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return nil, err
	}

	u.Info("PDF cache hit", "key", key)
	return cached, nil
}

func setCachedPDF(ctx context.Context, rdb *redis.Client, key string, data []byte, ttl time.Duration) {
	ctxRedis, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	if ttl <= 0 {
		ttl = 1 * time.Minute
	}

	if err := rdb.Set(ctxRedis, key, data, ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
