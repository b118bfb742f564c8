package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
	"go.uber.org/zap"
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	Resolve(ctx context.Context, code string) (*model.Link, error)
	GetLink(ctx context.Context, id uuid.UUID) (*model.Link, error)
	ListLinks(ctx context.Context, ownerID uuid.UUID, activeOnly bool, limit, offset int) ([]model.Link, error)
	UpdateLink(ctx context.Context, id uuid.UUID, input UpdateLinkInput) (*model.Link, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Link, error)
	Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) []repository.ReorderOutcome
	DeleteLink(ctx context.Context, id uuid.UUID, mode model.DeleteMode) error
}

type linkService struct {
	repo      repository.LinkRepository
	cache     repository.LinkCache
	allocator *CodeAllocator
	logger    *zap.Logger
}

// NewLinkService returns a service implementation backed by the given
// repository, cache and allocator.
func NewLinkService(repo repository.LinkRepository, cache repository.LinkCache, allocator *CodeAllocator, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{repo: repo, cache: cache, allocator: allocator, logger: logger}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	CustomAlias  string
	URL          string
	OwnerID      uuid.UUID
	DisplayOrder int
	ExpiresAt    *time.Time
}

// UpdateLinkInput captures fields that can be changed on an existing link.
type UpdateLinkInput struct {
	URL          *string
	Active       *bool
	DisplayOrder *int
	ExpiresAt    *time.Time
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	code, err := s.allocator.Allocate(ctx, input.CustomAlias)
	if err != nil {
		return nil, err
	}

	link := &model.Link{
		Code:         code,
		URL:          input.URL,
		OwnerID:      input.OwnerID,
		Active:       true,
		DisplayOrder: input.DisplayOrder,
		ExpiresAt:    input.ExpiresAt,
	}

	if err := s.repo.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrCodeTaken) && input.CustomAlias != "" {
			return nil, ErrAliasTaken
		}
		return nil, fmt.Errorf("create link: %w", err)
	}

	s.allocator.Observe(link.Code)

	// Cache fill is best effort; the next resolve fills it anyway.
	if err := s.cache.Set(ctx, link); err != nil {
		s.logger.Warn("failed to cache new link", zap.String("code", link.Code), zap.Error(err))
	}

	return link, nil
}

// Resolve looks a code up for the redirect path: bloom filter, then
// cache, then the durable store with a cache fill on the way out.
func (s *linkService) Resolve(ctx context.Context, code string) (*model.Link, error) {
	if !s.allocator.MightExist(code) {
		return nil, repository.ErrLinkNotFound
	}

	if link, err := s.cache.Get(ctx, code); err == nil {
		return link, nil
	} else if !errors.Is(err, repository.ErrLinkNotFound) {
		s.logger.Warn("link cache read failed", zap.String("code", code), zap.Error(err))
	}

	link, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, link); err != nil {
		s.logger.Warn("link cache fill failed", zap.String("code", code), zap.Error(err))
	}
	return link, nil
}

func (s *linkService) GetLink(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, ownerID uuid.UUID, activeOnly bool, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.List(ctx, ownerID, activeOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, id uuid.UUID, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	if input.URL != nil {
		link.URL = *input.URL
	}
	if input.Active != nil {
		link.Active = *input.Active
	}
	if input.DisplayOrder != nil {
		link.DisplayOrder = *input.DisplayOrder
	}
	if input.ExpiresAt != nil {
		link.ExpiresAt = input.ExpiresAt
	}

	// Invalidate before the write reports success so a concurrent
	// resolve cannot re-fill the cache with the old destination.
	if err := s.cache.Invalidate(ctx, link.Code); err != nil {
		return nil, fmt.Errorf("invalidate cache: %w", err)
	}

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	return link, nil
}

func (s *linkService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	if err := s.cache.Invalidate(ctx, link.Code); err != nil {
		return nil, fmt.Errorf("invalidate cache: %w", err)
	}

	updated, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	return updated, nil
}

func (s *linkService) Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) []repository.ReorderOutcome {
	outcomes := s.repo.Reorder(ctx, ownerID, orderedIDs)

	for _, outcome := range outcomes {
		if !outcome.OK {
			continue
		}
		link, err := s.repo.GetByID(ctx, outcome.LinkID)
		if err != nil {
			continue
		}
		if err := s.cache.Invalidate(ctx, link.Code); err != nil {
			s.logger.Warn("cache invalidation after reorder failed",
				zap.String("code", link.Code), zap.Error(err))
		}
	}
	return outcomes
}

func (s *linkService) DeleteLink(ctx context.Context, id uuid.UUID, mode model.DeleteMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown delete mode %q", mode)
	}

	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load link: %w", err)
	}

	if err := s.cache.Invalidate(ctx, link.Code); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}

	if _, err := s.repo.Delete(ctx, id, mode); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}
