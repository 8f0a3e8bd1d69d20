package repo

import (
	"sort"
	"sync"
	"time"

	"wa-listings/internal/domain"
)

// Memory — потокобезопасная реализация репозиториев в памяти.
// Контракт тот же, что у Postgres: идентификаторы строго растут и не
// переиспользуются после удаления.
type Memory struct {
	mu            sync.Mutex
	listings      map[int64]domain.Listing
	groups        map[int64]domain.MonitoredGroup
	nextListingID int64
	nextGroupID   int64
}

var (
	_ domain.ListingRepo = (*Memory)(nil)
	_ domain.GroupRepo   = (*Memory)(nil)
)

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	return &Memory{
		listings: make(map[int64]domain.Listing),
		groups:   make(map[int64]domain.MonitoredGroup),
	}
}

// ListListings возвращает все объявления в порядке идентификаторов.
func (m *Memory) ListListings() ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	listings := make([]domain.Listing, 0, len(m.listings))
	for _, l := range m.listings {
		listings = append(listings, l)
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings, nil
}

// GetListing возвращает объявление по идентификатору.
func (m *Memory) GetListing(id int64) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, nil
}

// CreateListing сохраняет объявление и присваивает идентификатор.
func (m *Memory) CreateListing(draft domain.ListingDraft) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListingID++
	l := domain.Listing{
		ID:           m.nextListingID,
		Title:        draft.Title,
		Description:  draft.Description,
		Price:        draft.Price,
		Location:     draft.Location,
		PropertyType: draft.PropertyType,
		Bedrooms:     draft.Bedrooms,
		Bathrooms:    draft.Bathrooms,
		ImageURL:     draft.ImageURL,
		Furnished:    draft.Furnished,
		ContactInfo:  draft.ContactInfo,
	}
	m.listings[l.ID] = l
	return l, nil
}

// UpdateListing применяет частичное обновление поверх текущей записи.
func (m *Memory) UpdateListing(id int64, patch domain.ListingPatch) (domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	if patch.Title != nil {
		l.Title = *patch.Title
	}
	if patch.Description != nil {
		l.Description = *patch.Description
	}
	if patch.Price != nil {
		l.Price = *patch.Price
	}
	if patch.Location != nil {
		l.Location = *patch.Location
	}
	if patch.PropertyType != nil {
		l.PropertyType = *patch.PropertyType
	}
	if patch.Bedrooms != nil {
		l.Bedrooms = *patch.Bedrooms
	}
	if patch.Bathrooms != nil {
		l.Bathrooms = *patch.Bathrooms
	}
	if patch.ImageURL != nil {
		l.ImageURL = *patch.ImageURL
	}
	if patch.Furnished != nil {
		l.Furnished = *patch.Furnished
	}
	if patch.ContactInfo != nil {
		l.ContactInfo = *patch.ContactInfo
	}
	m.listings[id] = l
	return l, nil
}

// DeleteListing удаляет объявление. Возвращает false для незнакомого id.
func (m *Memory) DeleteListing(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.listings[id]; !ok {
		return false, nil
	}
	delete(m.listings, id)
	return true, nil
}

// ListGroups возвращает все группы в порядке идентификаторов.
func (m *Memory) ListGroups() ([]domain.MonitoredGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := make([]domain.MonitoredGroup, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups, nil
}

// GetGroup возвращает группу по идентификатору.
func (m *Memory) GetGroup(id int64) (domain.MonitoredGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	return g, nil
}

// RegisterGroup сохраняет группу, lastScraped выставляется временем
// регистрации.
func (m *Memory) RegisterGroup(name, inviteLink string, isActive bool) (domain.MonitoredGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextGroupID++
	g := domain.MonitoredGroup{
		ID:          m.nextGroupID,
		Name:        name,
		InviteLink:  inviteLink,
		IsActive:    isActive,
		LastScraped: time.Now().UTC(),
	}
	m.groups[g.ID] = g
	return g, nil
}

// RemoveGroup удаляет группу.
func (m *Memory) RemoveGroup(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.groups[id]; !ok {
		return false, nil
	}
	delete(m.groups, id)
	return true, nil
}

// SetGroupActive переключает статус группы.
func (m *Memory) SetGroupActive(id int64, isActive bool) (domain.MonitoredGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	g.IsActive = isActive
	m.groups[id] = g
	return g, nil
}

// TouchScraped выставляет lastScraped, не давая метке уйти назад.
func (m *Memory) TouchScraped(id int64) (domain.MonitoredGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	if now := time.Now().UTC(); now.After(g.LastScraped) {
		g.LastScraped = now
	}
	m.groups[id] = g
	return g, nil
}
