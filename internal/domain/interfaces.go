package domain

import (
	"context"
	"time"
)

// ListingRepo управляет объявлениями.
type ListingRepo interface {
	ListListings() ([]Listing, error)
	GetListing(id int64) (Listing, error)
	CreateListing(draft ListingDraft) (Listing, error)
	UpdateListing(id int64, patch ListingPatch) (Listing, error)
	DeleteListing(id int64) (bool, error)
}

// GroupRepo управляет отслеживаемыми группами.
type GroupRepo interface {
	ListGroups() ([]MonitoredGroup, error)
	GetGroup(id int64) (MonitoredGroup, error)
	RegisterGroup(name, inviteLink string, isActive bool) (MonitoredGroup, error)
	RemoveGroup(id int64) (bool, error)
	SetGroupActive(id int64, isActive bool) (MonitoredGroup, error)
	TouchScraped(id int64) (MonitoredGroup, error)
}

// Gateway — клиент внешнего провайдера сообщений.
type Gateway interface {
	Send(ctx context.Context, target, text string) error
	FetchMessages(ctx context.Context, group MonitoredGroup) ([]string, error)
	JoinGroup(ctx context.Context, inviteLink string) error
	LeaveGroup(ctx context.Context, target string) error
}

// ScrapeQueue — очередь задач на обход групп.
type ScrapeQueue interface {
	Enqueue(ctx context.Context, job ScrapeJob) error
	Pop(ctx context.Context) (ScrapeJob, error)
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
