package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/linkboard/linkboard/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested short link does not exist.
	ErrLinkNotFound = errors.New("link not found")
	// ErrCodeTaken signals that the short code collides with a live or
	// retired one.
	ErrCodeTaken = errors.New("short code already taken")
)

// ReorderOutcome reports the result of one link's position update. Reorder
// applies per-link writes independently, so a partial failure leaves the
// applied items in place and names the ones that failed.
type ReorderOutcome struct {
	LinkID uuid.UUID `json:"link_id"`
	Order  int       `json:"order"`
	Err    error     `json:"-"`
	OK     bool      `json:"ok"`
}

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error)
	List(ctx context.Context, ownerID uuid.UUID, activeOnly bool, limit, offset int) ([]model.Link, error)
	Update(ctx context.Context, link *model.Link) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Link, error)
	Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) []ReorderOutcome
	Delete(ctx context.Context, id uuid.UUID, mode model.DeleteMode) (*model.Link, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	AllCodes(ctx context.Context) ([]string, error)
	Counts(ctx context.Context, ownerID uuid.UUID) (total, active int64, err error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

// Create inserts the link in a single statement. Code uniqueness is
// enforced by the database index, not by a prior lookup, so two
// concurrent inserts of the same code cannot both succeed. The retired
// codes table is consulted inside the same transaction to keep
// historical codes off limits.
func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var retired int64
		if err := tx.Model(&model.RetiredCode{}).
			Where("code = ?", link.Code).
			Count(&retired).Error; err != nil {
			return err
		}
		if retired > 0 {
			return ErrCodeTaken
		}
		return tx.Create(link).Error
	})
	if err != nil {
		if errors.Is(err, ErrCodeTaken) || isUniqueViolation(err) {
			return ErrCodeTaken
		}
		return fmt.Errorf("create link: %w", err)
	}
	return nil
}

func (r *linkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) List(ctx context.Context, ownerID uuid.UUID, activeOnly bool, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if activeOnly {
		q = q.Where("active")
	}

	var result []model.Link
	if err := q.Order("display_order ASC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"url":           link.URL,
			"active":        link.Active,
			"display_order": link.DisplayOrder,
			"expires_at":    link.ExpiresAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}

	return r.db.WithContext(ctx).Where("id = ?", link.ID).First(link).Error
}

func (r *linkRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Link, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", id).
		Update("active", active)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrLinkNotFound
	}
	return r.GetByID(ctx, id)
}

// Reorder persists a dense display order within the owner's scope. Each
// position is written independently; there is no rollback of earlier
// writes when a later one fails.
func (r *linkRepository) Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) []ReorderOutcome {
	outcomes := make([]ReorderOutcome, 0, len(orderedIDs))
	for pos, id := range orderedIDs {
		outcome := ReorderOutcome{LinkID: id, Order: pos}
		result := r.db.WithContext(ctx).
			Model(&model.Link{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Update("display_order", pos)
		switch {
		case result.Error != nil:
			outcome.Err = result.Error
		case result.RowsAffected == 0:
			outcome.Err = ErrLinkNotFound
		default:
			outcome.OK = true
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Delete applies the requested mode. Hard modes retire the code so it can
// never be allocated again; DeleteHardWithEvents also removes the link's
// click events and aggregates in the same transaction. The removed link
// is returned so callers can invalidate caches.
func (r *linkRepository) Delete(ctx context.Context, id uuid.UUID, mode model.DeleteMode) (*model.Link, error) {
	link, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch mode {
	case model.DeleteSoft:
		if _, err := r.SetActive(ctx, id, false); err != nil {
			return nil, err
		}
		return link, nil

	case model.DeleteHardKeepEvents, model.DeleteHardWithEvents:
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if mode == model.DeleteHardWithEvents {
				if err := tx.Where("link_id = ?", id).Delete(&model.ClickEvent{}).Error; err != nil {
					return err
				}
				if err := tx.Where("link_id = ?", id).Delete(&model.DailyAggregate{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Create(&model.RetiredCode{Code: link.Code}).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", id).Delete(&model.Link{}).Error
		})
		if err != nil {
			return nil, fmt.Errorf("delete link: %w", err)
		}
		return link, nil

	default:
		return nil, fmt.Errorf("unknown delete mode %q", mode)
	}
}

// CodeExists checks live links and retired codes in one round-trip pair.
// Callers must still rely on Create for the authoritative answer.
func (r *linkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&model.RetiredCode{}).
		Where("code = ?", code).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// AllCodes returns every live and retired code, used to warm the bloom
// filter at startup.
func (r *linkRepository) AllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).Model(&model.Link{}).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	var retired []string
	if err := r.db.WithContext(ctx).Model(&model.RetiredCode{}).
		Pluck("code", &retired).Error; err != nil {
		return nil, err
	}
	return append(codes, retired...), nil
}

func (r *linkRepository) Counts(ctx context.Context, ownerID uuid.UUID) (int64, int64, error) {
	var total, active int64
	if err := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("owner_id = ?", ownerID).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := r.db.WithContext(ctx).Model(&model.Link{}).
		Where("owner_id = ? AND active", ownerID).Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
