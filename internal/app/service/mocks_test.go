package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/linkboard/linkboard/internal/app/model"
	"github.com/linkboard/linkboard/internal/app/repository"
)

// memLinkRepository is an in-memory LinkRepository guarded by a mutex.
// Create performs insert-if-absent on the code, mirroring the unique
// index in Postgres.
type memLinkRepository struct {
	mu      sync.Mutex
	byCode  map[string]*model.Link
	byID    map[uuid.UUID]*model.Link
	retired map[string]bool

	createErr error
}

func newMemLinkRepository() *memLinkRepository {
	return &memLinkRepository{
		byCode:  make(map[string]*model.Link),
		byID:    make(map[uuid.UUID]*model.Link),
		retired: make(map[string]bool),
	}
}

func (m *memLinkRepository) Create(ctx context.Context, link *model.Link) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[link.Code]; ok {
		return repository.ErrCodeTaken
	}
	if m.retired[link.Code] {
		return repository.ErrCodeTaken
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	link.CreatedAt = time.Now()
	copied := *link
	m.byCode[link.Code] = &copied
	m.byID[link.ID] = &copied
	return nil
}

func (m *memLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.byCode[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *memLinkRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (m *memLinkRepository) List(ctx context.Context, ownerID uuid.UUID, activeOnly bool, limit, offset int) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Link
	for _, link := range m.byID {
		if link.OwnerID != ownerID {
			continue
		}
		if activeOnly && !link.Active {
			continue
		}
		out = append(out, *link)
	}
	return out, nil
}

func (m *memLinkRepository) Update(ctx context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[link.ID]
	if !ok {
		return repository.ErrLinkNotFound
	}
	stored.URL = link.URL
	stored.Active = link.Active
	stored.DisplayOrder = link.DisplayOrder
	stored.ExpiresAt = link.ExpiresAt
	*link = *stored
	return nil
}

func (m *memLinkRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	stored.Active = active
	copied := *stored
	return &copied, nil
}

func (m *memLinkRepository) Reorder(ctx context.Context, ownerID uuid.UUID, orderedIDs []uuid.UUID) []repository.ReorderOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	outcomes := make([]repository.ReorderOutcome, 0, len(orderedIDs))
	for pos, id := range orderedIDs {
		outcome := repository.ReorderOutcome{LinkID: id, Order: pos}
		if stored, ok := m.byID[id]; ok && stored.OwnerID == ownerID {
			stored.DisplayOrder = pos
			outcome.OK = true
		} else {
			outcome.Err = repository.ErrLinkNotFound
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (m *memLinkRepository) Delete(ctx context.Context, id uuid.UUID, mode model.DeleteMode) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	copied := *stored
	switch mode {
	case model.DeleteSoft:
		stored.Active = false
	default:
		delete(m.byID, id)
		delete(m.byCode, stored.Code)
		m.retired[stored.Code] = true
	}
	return &copied, nil
}

func (m *memLinkRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[code]; ok {
		return true, nil
	}
	return m.retired[code], nil
}

func (m *memLinkRepository) AllCodes(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var codes []string
	for code := range m.byCode {
		codes = append(codes, code)
	}
	for code := range m.retired {
		codes = append(codes, code)
	}
	return codes, nil
}

func (m *memLinkRepository) Counts(ctx context.Context, ownerID uuid.UUID) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total, active int64
	for _, link := range m.byID {
		if link.OwnerID != ownerID {
			continue
		}
		total++
		if link.Active {
			active++
		}
	}
	return total, active, nil
}

// memLinkCache is an in-memory LinkCache that records invalidations.
type memLinkCache struct {
	mu          sync.Mutex
	entries     map[string]*model.Link
	invalidated []string
}

func newMemLinkCache() *memLinkCache {
	return &memLinkCache{entries: make(map[string]*model.Link)}
}

func (c *memLinkCache) Get(ctx context.Context, code string) (*model.Link, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	link, ok := c.entries[code]
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	copied := *link
	return &copied, nil
}

func (c *memLinkCache) Set(ctx context.Context, link *model.Link) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *link
	c.entries[link.Code] = &copied
	return nil
}

func (c *memLinkCache) Invalidate(ctx context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	c.invalidated = append(c.invalidated, code)
	return nil
}

// memAggregateRepository applies increments atomically under a mutex,
// matching the linearizability the SQL upsert provides.
type memAggregateRepository struct {
	mu   sync.Mutex
	rows map[string]*model.DailyAggregate
}

func newMemAggregateRepository() *memAggregateRepository {
	return &memAggregateRepository{rows: make(map[string]*model.DailyAggregate)}
}

func aggKey(row *model.DailyAggregate) string {
	return row.LinkID.String() + "|" + row.Day.Format("2006-01-02") + "|" + string(row.DeviceType) + "|" + row.City
}

func (m *memAggregateRepository) Increment(ctx context.Context, row *model.DailyAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.rows[aggKey(row)]; ok {
		existing.Clicks += row.Clicks
		existing.QRClicks += row.QRClicks
		return nil
	}
	copied := *row
	m.rows[aggKey(row)] = &copied
	return nil
}

func (m *memAggregateRepository) ReplaceRange(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time, rows []model.DailyAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, row := range m.rows {
		if row.OwnerID != ownerID {
			continue
		}
		if linkID != nil && row.LinkID != *linkID {
			continue
		}
		if row.Day.Before(from) || !row.Day.Before(to) {
			continue
		}
		delete(m.rows, key)
	}
	for i := range rows {
		copied := rows[i]
		m.rows[aggKey(&copied)] = &copied
	}
	return nil
}

func (m *memAggregateRepository) snapshot() map[string]model.DailyAggregate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.DailyAggregate, len(m.rows))
	for key, row := range m.rows {
		out[key] = *row
	}
	return out
}

func (m *memAggregateRepository) Total(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var clicks, qr int64
	for _, row := range m.rows {
		if !m.match(row, ownerID, linkID, from) {
			continue
		}
		clicks += row.Clicks
		qr += row.QRClicks
	}
	return clicks, qr, nil
}

func (m *memAggregateRepository) match(row *model.DailyAggregate, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) bool {
	if row.OwnerID != ownerID || row.Day.Before(from) {
		return false
	}
	if linkID != nil && row.LinkID != *linkID {
		return false
	}
	return true
}

func (m *memAggregateRepository) ByDay(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.DayCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDate := make(map[string]int64)
	for _, row := range m.rows {
		if !m.match(row, ownerID, linkID, from) || !row.Day.Before(to) {
			continue
		}
		byDate[row.Day.Format("2006-01-02")] += row.Clicks
	}
	var out []model.DayCount
	for date, count := range byDate {
		out = append(out, model.DayCount{Date: date, Count: count})
	}
	return out, nil
}

func (m *memAggregateRepository) ByDevice(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time) ([]model.DeviceCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byDevice := make(map[model.DeviceType]int64)
	for _, row := range m.rows {
		if !m.match(row, ownerID, linkID, from) {
			continue
		}
		byDevice[row.DeviceType] += row.Clicks
	}
	var out []model.DeviceCount
	for device, count := range byDevice {
		out = append(out, model.DeviceCount{DeviceType: device, Count: count})
	}
	return out, nil
}

func (m *memAggregateRepository) ByCity(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from time.Time, topN int) ([]model.CityCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	type cityKey struct{ city, country string }
	byCity := make(map[cityKey]int64)
	for _, row := range m.rows {
		if !m.match(row, ownerID, linkID, from) || row.City == "" {
			continue
		}
		byCity[cityKey{row.City, row.Country}] += row.Clicks
	}
	var out []model.CityCount
	for key, count := range byCity {
		out = append(out, model.CityCount{City: key.city, Country: key.country, Count: count})
	}
	return out, nil
}

func (m *memAggregateRepository) TopLinks(ctx context.Context, ownerID uuid.UUID, from time.Time, topN int) ([]model.TopLink, error) {
	return nil, nil
}

// memClickEventRepository is an in-memory append-only click log.
type memClickEventRepository struct {
	mu        sync.Mutex
	events    []model.ClickEvent
	createErr error
}

func newMemClickEventRepository() *memClickEventRepository {
	return &memClickEventRepository{}
}

func (m *memClickEventRepository) Create(ctx context.Context, event *model.ClickEvent) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *memClickEventRepository) Range(ctx context.Context, ownerID uuid.UUID, linkID *uuid.UUID, from, to time.Time) ([]model.ClickEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ClickEvent
	for _, event := range m.events {
		if event.OwnerID != ownerID {
			continue
		}
		if linkID != nil && event.LinkID != *linkID {
			continue
		}
		if event.Timestamp.Before(from) || !event.Timestamp.Before(to) {
			continue
		}
		out = append(out, event)
	}
	return out, nil
}

func (m *memClickEventRepository) Recent(ctx context.Context, ownerID uuid.UUID, limit int) ([]model.ClickEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ClickEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].OwnerID == ownerID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memClickEventRepository) OwnersInRange(ctx context.Context, from, to time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, event := range m.events {
		if event.Timestamp.Before(from) || !event.Timestamp.Before(to) {
			continue
		}
		if !seen[event.OwnerID] {
			seen[event.OwnerID] = true
			out = append(out, event.OwnerID)
		}
	}
	return out, nil
}

func (m *memClickEventRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
