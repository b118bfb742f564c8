package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
	"github.com/linkboard/linkboard/internal/app/service"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Post("/reorder", h.Reorder)
			links.Get("/:id", h.GetLink)
			links.Patch("/:id", h.UpdateLink)
			links.Post("/:id/activate", h.Activate)
			links.Post("/:id/deactivate", h.Deactivate)
			links.Delete("/:id", h.DeleteLink)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	CustomAlias  string     `json:"custom_alias,omitempty"`
	URL          string     `json:"url" validate:"required,url"`
	OwnerID      uuid.UUID  `json:"owner_id" validate:"required"`
	DisplayOrder int        `json:"display_order,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is the wire form of a link in API responses.
type LinkResponse struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	URL          string     `json:"url"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	Active       bool       `json:"active"`
	DisplayOrder int        `json:"display_order"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toLinkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:           link.ID,
		Code:         link.Code,
		URL:          link.URL,
		OwnerID:      link.OwnerID,
		Active:       link.Active,
		DisplayOrder: link.DisplayOrder,
		ExpiresAt:    link.ExpiresAt,
		CreatedAt:    link.CreatedAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}
	if req.OwnerID == uuid.Nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id is required",
		})
	}

	link, err := h.linkService.CreateLink(requestContext(c), service.CreateLinkInput{
		CustomAlias:  req.CustomAlias,
		URL:          req.URL,
		OwnerID:      req.OwnerID,
		DisplayOrder: req.DisplayOrder,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidAlias):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "alias must be 3-32 letters, digits, hyphens or underscores",
			})
		case errors.Is(err, service.ErrAliasTaken), errors.Is(err, repository.ErrCodeTaken):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "alias already taken",
			})
		case errors.Is(err, service.ErrGenerationExhausted):
			h.logger.Error("short code generation exhausted", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "could not allocate a short code, retry",
			})
		}
		h.logger.Error("failed to create link", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create link",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(toLinkResponse(link))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	ownerID, err := uuid.Parse(c.Query("owner_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id query parameter is required",
		})
	}

	limit := 20
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		limit = parsed
	}
	offset := 0
	if parsed := c.QueryInt("offset"); parsed > 0 {
		offset = parsed
	}
	activeOnly := c.Query("is_active") == "true"

	links, err := h.linkService.ListLinks(requestContext(c), ownerID, activeOnly, limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = toLinkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.linkService.GetLink(requestContext(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("id", id.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to get link",
		})
	}

	return c.JSON(toLinkResponse(link))
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	URL          *string    `json:"url,omitempty" validate:"omitempty,url"`
	Active       *bool      `json:"active,omitempty"`
	DisplayOrder *int       `json:"display_order,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// UpdateLink handles PATCH /api/links/:id
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	link, err := h.linkService.UpdateLink(requestContext(c), id, service.UpdateLinkInput{
		URL:          req.URL,
		Active:       req.Active,
		DisplayOrder: req.DisplayOrder,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to update link", zap.Error(err), zap.String("id", id.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update link",
		})
	}

	return c.JSON(toLinkResponse(link))
}

// Activate handles POST /api/links/:id/activate
func (h *APIHandler) Activate(c *fiber.Ctx) error {
	return h.setActive(c, true)
}

// Deactivate handles POST /api/links/:id/deactivate
func (h *APIHandler) Deactivate(c *fiber.Ctx) error {
	return h.setActive(c, false)
}

func (h *APIHandler) setActive(c *fiber.Ctx, active bool) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	link, err := h.linkService.SetActive(requestContext(c), id, active)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to toggle link", zap.Error(err), zap.String("id", id.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to toggle link",
		})
	}

	return c.JSON(toLinkResponse(link))
}

// ReorderRequest carries the desired display order for an owner's links.
type ReorderRequest struct {
	OwnerID    uuid.UUID   `json:"owner_id"`
	OrderedIDs []uuid.UUID `json:"ordered_ids"`
}

// ReorderItemResult is the per-link outcome of a reorder.
type ReorderItemResult struct {
	LinkID uuid.UUID `json:"link_id"`
	Order  int       `json:"order"`
	OK     bool      `json:"ok"`
	Error  string    `json:"error,omitempty"`
}

// Reorder handles POST /api/links/reorder. Outcomes are reported per
// item so the caller can retry only the failed subset.
func (h *APIHandler) Reorder(c *fiber.Ctx) error {
	var req ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.OwnerID == uuid.Nil || len(req.OrderedIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "owner_id and ordered_ids are required",
		})
	}

	outcomes := h.linkService.Reorder(requestContext(c), req.OwnerID, req.OrderedIDs)

	results := make([]ReorderItemResult, len(outcomes))
	failed := 0
	for i, outcome := range outcomes {
		results[i] = ReorderItemResult{
			LinkID: outcome.LinkID,
			Order:  outcome.Order,
			OK:     outcome.OK,
		}
		if !outcome.OK {
			failed++
			if outcome.Err != nil {
				results[i].Error = outcome.Err.Error()
			}
		}
	}

	status := fiber.StatusOK
	if failed > 0 {
		status = fiber.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{
		"results": results,
		"failed":  failed,
	})
}

// DeleteLink handles DELETE /api/links/:id?mode=soft|hard_keep_events|hard_with_events
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid link id",
		})
	}

	mode := model.DeleteMode(c.Query("mode", string(model.DeleteSoft)))
	if !mode.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "mode must be one of: soft, hard_keep_events, hard_with_events",
		})
	}

	if err := h.linkService.DeleteLink(requestContext(c), id, mode); err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "link not found",
			})
		}
		h.logger.Error("failed to delete link", zap.Error(err), zap.String("id", id.String()))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete link",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func requestContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}
