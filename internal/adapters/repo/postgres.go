package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wa-listings/internal/domain"
	"wa-listings/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.ListingRepo = (*Postgres)(nil)
	_ domain.GroupRepo   = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

const listingColumns = "id, title, description, price, location, property_type, bedrooms, bathrooms, image_url, furnished, contact_info"

func scanListing(row pgx.Row) (domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(&l.ID, &l.Title, &l.Description, &l.Price, &l.Location, &l.PropertyType, &l.Bedrooms, &l.Bathrooms, &l.ImageURL, &l.Furnished, &l.ContactInfo)
	return l, err
}

// ListListings возвращает все объявления.
func (p *Postgres) ListListings() ([]domain.Listing, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+listingColumns+` FROM listings ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "listings_list", "listings", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var listings []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetListing возвращает объявление по идентификатору.
func (p *Postgres) GetListing(id int64) (domain.Listing, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	l, err := scanListing(p.pool.QueryRow(ctx, `
SELECT `+listingColumns+` FROM listings WHERE id = $1
`, id))
	metrics.ObserveNetworkRequest("postgres", "listings_get", "listings", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, err
}

// CreateListing сохраняет объявление и присваивает идентификатор.
// Идентификаторы строго растут и не переиспользуются после удаления.
func (p *Postgres) CreateListing(draft domain.ListingDraft) (domain.Listing, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	l, err := scanListing(p.pool.QueryRow(ctx, `
INSERT INTO listings (title, description, price, location, property_type, bedrooms, bathrooms, image_url, furnished, contact_info)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+listingColumns+`
`, draft.Title, draft.Description, draft.Price, draft.Location, draft.PropertyType, draft.Bedrooms, draft.Bathrooms, draft.ImageURL, draft.Furnished, draft.ContactInfo))
	metrics.ObserveNetworkRequest("postgres", "listings_insert", "listings", start, err)
	return l, err
}

// UpdateListing применяет частичное обновление. nil-поля патча сохраняют
// текущие значения; слияние выполняется одним атомарным UPDATE.
func (p *Postgres) UpdateListing(id int64, patch domain.ListingPatch) (domain.Listing, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	l, err := scanListing(p.pool.QueryRow(ctx, `
UPDATE listings SET
	title = COALESCE($2, title),
	description = COALESCE($3, description),
	price = COALESCE($4, price),
	location = COALESCE($5, location),
	property_type = COALESCE($6, property_type),
	bedrooms = COALESCE($7, bedrooms),
	bathrooms = COALESCE($8, bathrooms),
	image_url = COALESCE($9, image_url),
	furnished = COALESCE($10, furnished),
	contact_info = COALESCE($11, contact_info)
WHERE id = $1
RETURNING `+listingColumns+`
`, id, patch.Title, patch.Description, patch.Price, patch.Location, patch.PropertyType, patch.Bedrooms, patch.Bathrooms, patch.ImageURL, patch.Furnished, patch.ContactInfo))
	metrics.ObserveNetworkRequest("postgres", "listings_update", "listings", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Listing{}, domain.ErrListingNotFound
	}
	return l, err
}

// DeleteListing удаляет объявление. Возвращает false для незнакомого id.
func (p *Postgres) DeleteListing(id int64) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM listings WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "listings_delete", "listings", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const groupColumns = "id, name, invite_link, is_active, last_scraped"

func scanGroup(row pgx.Row) (domain.MonitoredGroup, error) {
	var g domain.MonitoredGroup
	err := row.Scan(&g.ID, &g.Name, &g.InviteLink, &g.IsActive, &g.LastScraped)
	return g, err
}

// ListGroups возвращает все отслеживаемые группы.
func (p *Postgres) ListGroups() ([]domain.MonitoredGroup, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT `+groupColumns+` FROM groups ORDER BY id
`)
	metrics.ObserveNetworkRequest("postgres", "groups_list", "groups", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []domain.MonitoredGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetGroup возвращает группу по идентификатору.
func (p *Postgres) GetGroup(id int64) (domain.MonitoredGroup, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	g, err := scanGroup(p.pool.QueryRow(ctx, `
SELECT `+groupColumns+` FROM groups WHERE id = $1
`, id))
	metrics.ObserveNetworkRequest("postgres", "groups_get", "groups", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	return g, err
}

// RegisterGroup сохраняет группу. Ссылка-приглашение не проверяется по
// сети, регистрация всегда локальная.
func (p *Postgres) RegisterGroup(name, inviteLink string, isActive bool) (domain.MonitoredGroup, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	g, err := scanGroup(p.pool.QueryRow(ctx, `
INSERT INTO groups (name, invite_link, is_active, last_scraped)
VALUES ($1, $2, $3, now())
RETURNING `+groupColumns+`
`, name, inviteLink, isActive))
	metrics.ObserveNetworkRequest("postgres", "groups_insert", "groups", start, err)
	return g, err
}

// RemoveGroup удаляет группу из реестра.
func (p *Postgres) RemoveGroup(id int64) (bool, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "groups_delete", "groups", start, err)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetGroupActive переключает статус группы.
func (p *Postgres) SetGroupActive(id int64, isActive bool) (domain.MonitoredGroup, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	g, err := scanGroup(p.pool.QueryRow(ctx, `
UPDATE groups SET is_active = $2 WHERE id = $1
RETURNING `+groupColumns+`
`, id, isActive))
	metrics.ObserveNetworkRequest("postgres", "groups_set_active", "groups", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	return g, err
}

// TouchScraped выставляет lastScraped. GREATEST сохраняет монотонность
// метки при конкурирующих обходах одной группы.
func (p *Postgres) TouchScraped(id int64) (domain.MonitoredGroup, error) {
	ctx, cancel := p.connCtx()
	defer cancel()

	start := time.Now()
	g, err := scanGroup(p.pool.QueryRow(ctx, `
UPDATE groups SET last_scraped = GREATEST(last_scraped, now()) WHERE id = $1
RETURNING `+groupColumns+`
`, id))
	metrics.ObserveNetworkRequest("postgres", "groups_touch_scraped", "groups", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	return g, err
}
