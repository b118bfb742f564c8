package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/service"
	"go.uber.org/zap"
)

// StatsDeps groups dependencies required by the analytics read API.
type StatsDeps struct {
	Logger     *zap.Logger
	Stats      service.StatsService
	Aggregator *service.Aggregator
}

// StatsHandler serves the aggregate views the dashboard renders and the
// admin rebuild endpoint.
type StatsHandler struct {
	logger     *zap.Logger
	stats      service.StatsService
	aggregator *service.Aggregator
}

// NewStatsHandler creates a stats handler with the provided dependencies.
func NewStatsHandler(deps StatsDeps) *StatsHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsHandler{
		logger:     logger,
		stats:      deps.Stats,
		aggregator: deps.Aggregator,
	}
}

// Register wires stats routes onto the provided router.
func (h *StatsHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Get("/links/:id/stats", h.LinkStats)
		api.Get("/dashboard", h.Dashboard)
		api.Post("/admin/aggregates/rebuild", h.Rebuild)
	}
}

// LinkStats handles GET /api/links/:id/stats?owner_id=...&days=N
func (h *StatsHandler) LinkStats(c *fiber.Ctx) error {
	linkID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id query parameter is required",
		})
	}
	days := c.QueryInt("days", 30)

	stats, err := h.stats.LinkStats(requestContext(c), ownerID, linkID, days)
	if err != nil {
		h.logger.Error("failed to load link stats",
			zap.Error(err), zap.String("link_id", linkID.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load link stats",
		})
	}

	return c.JSON(stats)
}

// Dashboard handles GET /api/dashboard?owner_id=...&days=N
func (h *StatsHandler) Dashboard(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id query parameter is required",
		})
	}
	days := c.QueryInt("days", 30)

	stats, err := h.stats.Dashboard(requestContext(c), ownerID, days)
	if err != nil {
		h.logger.Error("failed to load dashboard stats",
			zap.Error(err), zap.String("owner_id", ownerID.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load dashboard stats",
		})
	}

	return c.JSON(stats)
}

// RebuildRequest scopes an aggregate rebuild.
type RebuildRequest struct {
	OwnerID uuid.UUID  `json:"owner_id"`
	LinkID  *uuid.UUID `json:"link_id,omitempty"`
	From    string     `json:"from"` // YYYY-MM-DD, inclusive
	To      string     `json:"to"`   // YYYY-MM-DD, exclusive
}

// Rebuild handles POST /api/admin/aggregates/rebuild. Used for backfill
// and repair; safe to run repeatedly.
func (h *StatsHandler) Rebuild(c *fiber.Ctx) error {
	var req RebuildRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.OwnerID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id is required",
		})
	}

	from, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "from must be YYYY-MM-DD",
		})
	}
	to, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "to must be YYYY-MM-DD",
		})
	}

	if err := h.aggregator.Rebuild(requestContext(c), req.OwnerID, req.LinkID, from, to); err != nil {
		h.logger.Error("aggregate rebuild failed",
			zap.Error(err), zap.String("owner_id", req.OwnerID.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "rebuild failed",
		})
	}

	return c.JSON(fiber.Map{
		"status": "rebuilt",
		"from":   req.From,
		"to":     req.To,
	})
}
