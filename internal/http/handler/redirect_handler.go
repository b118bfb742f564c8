package handler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
	"github.com/linkboard/linkboard/internal/app/service"
	infraprom "github.com/linkboard/linkboard/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handler.
type RedirectDeps struct {
	Logger         *zap.Logger
	Links          service.LinkService
	Dispatcher     *service.ClickDispatcher
	ReservedPaths  []string
	ResolveTimeout time.Duration
}

// RedirectHandler implements short-code resolution. The redirect is sent
// without waiting on the analytics path; click recording is handed to
// the dispatcher and forgotten.
type RedirectHandler struct {
	logger         *zap.Logger
	links          service.LinkService
	dispatcher     *service.ClickDispatcher
	reserved       map[string]struct{}
	resolveTimeout time.Duration
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := deps.ResolveTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	reserved := make(map[string]struct{}, len(deps.ReservedPaths))
	for _, p := range deps.ReservedPaths {
		reserved[strings.ToLower(p)] = struct{}{}
	}
	return &RedirectHandler{
		logger:         logger,
		links:          deps.Links,
		dispatcher:     deps.Dispatcher,
		reserved:       reserved,
		resolveTimeout: timeout,
	}
}

// Register wires redirect routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/:code", h.Resolve)
}

// Resolve handles GET /:code. Found and active issues a 302; unknown or
// inactive answers 404 without recording a click; a store failure fails
// closed with 503. The lookup is bounded so a slow store cannot hang the
// request.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	start := time.Now()
	defer func() {
		infraprom.RedirectDuration.Observe(time.Since(start).Seconds())
	}()

	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link code",
		})
	}
	if _, ok := h.reserved[strings.ToLower(code)]; ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short link not found",
		})
	}

	parent := c.UserContext()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, h.resolveTimeout)
	defer cancel()

	link, err := h.links.Resolve(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "short link not found",
			})
		}
		h.logger.Error("failed to resolve link", zap.Error(err), zap.String("code", code))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "service unavailable",
		})
	}

	if !link.Active || (link.ExpiresAt != nil && time.Now().After(*link.ExpiresAt)) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short link not found",
		})
	}

	// Hand the click to the analytics pipeline. Enqueue never blocks,
	// so redirect latency stays independent of analytics health.
	h.dispatcher.Enqueue(model.RawClick{
		ID:        uuid.New().String(),
		Code:      link.Code,
		LinkID:    link.ID,
		OwnerID:   link.OwnerID,
		IP:        clientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		ViaQR:     qrEntry(c),
		Timestamp: time.Now().UTC(),
	})

	h.logger.Debug("redirecting short link",
		zap.String("code", code),
		zap.String("target", link.URL))
	return c.Redirect(link.URL, fiber.StatusFound)
}

// qrEntry reports whether the request came from a scanned QR code,
// accepting both the src=qr form and the legacy qrcode=true form.
func qrEntry(c *fiber.Ctx) bool {
	if strings.EqualFold(c.Query("src"), "qr") {
		return true
	}
	return strings.EqualFold(c.Query("qrcode"), "true")
}

// clientIP prefers the first X-Forwarded-For hop when present, falling
// back to the peer address.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	return c.IP()
}
