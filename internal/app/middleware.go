package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"
	"github.com/rs/xid"

	"docx2pdf/internal/store"
	u "docx2pdf/internal/utils"
)

const apiKeyLocal = "api_key"

// rateLimits builds and caches the limiter handlers of one app.
type rateLimits struct {
	cfg     u.Config
	storage fiber.Storage
	tokens  *store.Tokens

	mu      sync.RWMutex
	byLimit map[int]fiber.Handler
}

func newRateLimits(cfg u.Config, storage fiber.Storage, tokens *store.Tokens) *rateLimits {
	return &rateLimits{
		cfg:     cfg,
		storage: storage,
		tokens:  tokens,
		byLimit: make(map[int]fiber.Handler),
	}
}

func tooManyRequests(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    fiber.StatusTooManyRequests,
			"message": "Too Many Requests",
		},
	})
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}

// tokenLimiter returns the limiter shared by all tokens with the same limit.
func (rl *rateLimits) tokenLimiter(limit int) fiber.Handler {
	rl.mu.RLock()
	h, ok := rl.byLimit[limit]
	rl.mu.RUnlock()
	if ok {
		return h
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if h, ok := rl.byLimit[limit]; ok {
		return h
	}
	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        rl.cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rl.storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			token, _ := c.Locals(apiKeyLocal).(string)
			return token
		},
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "path", c.Path(), "limit", limit)
			return tooManyRequests(c)
		},
	})
	rl.byLimit[limit] = h
	return h
}

// byToken applies the per-token limit. Tokens with a zero limit are unlimited.
func (rl *rateLimits) byToken() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(apiKeyLocal).(string)
		if !ok || token == "" {
			return c.Next()
		}
		limit := rl.tokens.RateLimit(token)
		if limit == 0 {
			return c.Next()
		}
		return rl.tokenLimiter(limit)(c)
	}
}

// byClient limits anonymous requests by a hash of IP and User-Agent.
func (rl *rateLimits) byClient() fiber.Handler {
	if rl.cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	clientLimiter := limiter.New(limiter.Config{
		Max:               rl.cfg.RateLimiter.UserLimit,
		Expiration:        rl.cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           rl.storage,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			u.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	return func(c *fiber.Ctx) error {
		// Authenticated requests are already limited per token.
		if token, ok := c.Locals(apiKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return clientLimiter(c)
	}
}

// limitStorage connects the limiter to Redis and falls back to memory when
// the client cannot be created.
func limitStorage(cfg u.Config) (storage fiber.Storage) {
	storage = memoryStorage.New()

	defer func() {
		if r := recover(); r != nil {
			u.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	storage = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Cache.RedisHost},
		Database: cfg.Cache.RateLimitDB,
	})
	u.Info("Using Redis for rate limiting", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.RateLimitDB)
	return storage
}

func apiKeyAuth(tokens *store.Tokens) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: apiKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if err := tokens.Validate(key); err != nil {
				return false, err
			}
			return true, nil
		},
		// Requests without a key fall through to the client limiter.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Keyauth can call ErrorHandler with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, store.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return c.Status(status).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    status,
					"message": err.Error(),
				},
			})
		},
	})
}

// RegisterMiddleware attaches global middleware to the app.
func RegisterMiddleware(app *fiber.App, cfg u.Config, tokens *store.Tokens, storage fiber.Storage) {
	if storage == nil {
		storage = limitStorage(cfg)
	}
	limits := newRateLimits(cfg, storage, tokens)

	app.Use(cors.New(cors.Config{
		ExposeHeaders: "Content-Disposition, X-Conversion-Errors, X-Conversion-Failed, X-Request-ID",
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		ReadinessProbe: func(*fiber.Ctx) bool {
			return tokens.Ready()
		},
	}))

	app.Use(apiKeyAuth(tokens))
	app.Use(limits.byToken())

	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		app.Use(limits.byClient())
	}

	app.Use(func(c *fiber.Ctx) error {
		u.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		return c.Next()
	})
}
