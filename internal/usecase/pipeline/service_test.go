package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wa-listings/internal/domain"
)

const listingText = "2 BHK apartment in Kreuzberg, 1200€/month, furnished, contact: +49123456789"

type stubListings struct {
	created []domain.ListingDraft
	nextID  int64
}

func (s *stubListings) ListListings() ([]domain.Listing, error)          { return nil, nil }
func (s *stubListings) GetListing(int64) (domain.Listing, error)         { return domain.Listing{}, domain.ErrListingNotFound }
func (s *stubListings) UpdateListing(int64, domain.ListingPatch) (domain.Listing, error) {
	return domain.Listing{}, domain.ErrListingNotFound
}
func (s *stubListings) DeleteListing(int64) (bool, error) { return false, nil }
func (s *stubListings) CreateListing(draft domain.ListingDraft) (domain.Listing, error) {
	s.created = append(s.created, draft)
	s.nextID++
	return domain.Listing{
		ID:           s.nextID,
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
	}, nil
}

type stubGroups struct {
	group   domain.MonitoredGroup
	touched int
}

func (s *stubGroups) ListGroups() ([]domain.MonitoredGroup, error) {
	return []domain.MonitoredGroup{s.group}, nil
}
func (s *stubGroups) GetGroup(id int64) (domain.MonitoredGroup, error) {
	if id != s.group.ID {
		return domain.MonitoredGroup{}, domain.ErrGroupNotFound
	}
	return s.group, nil
}
func (s *stubGroups) RegisterGroup(name, link string, active bool) (domain.MonitoredGroup, error) {
	return domain.MonitoredGroup{ID: 1, Name: name, InviteLink: link, IsActive: active, LastScraped: time.Now()}, nil
}
func (s *stubGroups) RemoveGroup(int64) (bool, error) { return true, nil }
func (s *stubGroups) SetGroupActive(id int64, active bool) (domain.MonitoredGroup, error) {
	s.group.IsActive = active
	return s.group, nil
}
func (s *stubGroups) TouchScraped(int64) (domain.MonitoredGroup, error) {
	s.touched++
	s.group.LastScraped = time.Now()
	return s.group, nil
}

type stubGateway struct {
	messages []string
	fetchErr error
	fetches  int
	sent     []string
}

func (g *stubGateway) Send(_ context.Context, target, text string) error {
	g.sent = append(g.sent, text)
	return nil
}
func (g *stubGateway) FetchMessages(context.Context, domain.MonitoredGroup) ([]string, error) {
	g.fetches++
	return g.messages, g.fetchErr
}
func (g *stubGateway) JoinGroup(context.Context, string) error  { return nil }
func (g *stubGateway) LeaveGroup(context.Context, string) error { return nil }

type fakeCache struct {
	seen map[string]struct{}
}

func (c *fakeCache) Once(key string, _ time.Duration, fn func() error) error {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	if _, ok := c.seen[key]; ok {
		return nil
	}
	c.seen[key] = struct{}{}
	return fn()
}
func (c *fakeCache) Set(string, []byte, time.Duration) error { return nil }
func (c *fakeCache) Get(string) ([]byte, error)              { return nil, errors.New("not found") }

func newTestService(listings *stubListings, groups *stubGroups, gateway *stubGateway) *Service {
	return NewService(listings, groups, gateway, &fakeCache{}, zerolog.Nop())
}

func TestProcessMessageRejectsChatter(t *testing.T) {
	listings := &stubListings{}
	svc := newTestService(listings, &stubGroups{}, &stubGateway{})
	listing, err := svc.ProcessMessage(context.Background(), "hello everyone, anybody around?")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if listing != nil {
		t.Fatalf("не ожидали объявление для болтовни")
	}
	if len(listings.created) != 0 {
		t.Fatalf("хранилище не должно изменяться при отказе")
	}
}

func TestProcessMessageCreatesListing(t *testing.T) {
	listings := &stubListings{}
	svc := newTestService(listings, &stubGroups{}, &stubGateway{})
	listing, err := svc.ProcessMessage(context.Background(), listingText)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if listing == nil {
		t.Fatalf("ожидали объявление")
	}
	if listing.ID != 1 {
		t.Fatalf("ожидали присвоенный идентификатор, получили %d", listing.ID)
	}
	if listing.Location != "Kreuzberg" || listing.Price != 1200 || listing.Bedrooms != 2 {
		t.Fatalf("поля объявления не совпали с извлечёнными: %+v", listing)
	}
}

func TestScrapeGroupInactive(t *testing.T) {
	groups := &stubGroups{group: domain.MonitoredGroup{ID: 7, IsActive: false}}
	gateway := &stubGateway{messages: []string{listingText}}
	svc := newTestService(&stubListings{}, groups, gateway)
	count, err := svc.ScrapeGroup(context.Background(), 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if count != 0 {
		t.Fatalf("ожидали 0 для отключённой группы, получили %d", count)
	}
	if gateway.fetches != 0 {
		t.Fatalf("шлюз не должен вызываться для отключённой группы")
	}
	if groups.touched != 0 {
		t.Fatalf("lastScraped не должен обновляться для отключённой группы")
	}
}

func TestScrapeGroupTouchesOnZeroListings(t *testing.T) {
	groups := &stubGroups{group: domain.MonitoredGroup{ID: 7, IsActive: true}}
	gateway := &stubGateway{messages: []string{"nothing to see here"}}
	svc := newTestService(&stubListings{}, groups, gateway)
	count, err := svc.ScrapeGroup(context.Background(), 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if count != 0 {
		t.Fatalf("ожидали 0 новых объявлений, получили %d", count)
	}
	if groups.touched != 1 {
		t.Fatalf("успешный обход обязан обновить lastScraped")
	}
}

func TestScrapeGroupFetchError(t *testing.T) {
	groups := &stubGroups{group: domain.MonitoredGroup{ID: 7, IsActive: true}}
	gateway := &stubGateway{fetchErr: &domain.GatewayError{Code: "131000", Message: "internal error"}}
	svc := newTestService(&stubListings{}, groups, gateway)
	count, err := svc.ScrapeGroup(context.Background(), 7)
	if err != nil {
		t.Fatalf("ошибка шлюза должна гаситься: %v", err)
	}
	if count != 0 {
		t.Fatalf("ожидали 0 при ошибке шлюза, получили %d", count)
	}
	if groups.touched != 0 {
		t.Fatalf("lastScraped не должен сдвигаться при ошибке выборки")
	}
}

func TestScrapeGroupCountsCreated(t *testing.T) {
	groups := &stubGroups{group: domain.MonitoredGroup{ID: 7, IsActive: true}}
	gateway := &stubGateway{messages: []string{
		listingText,
		"see you all tomorrow",
		"Studio flat available in Mitte, 800€, unfurnished, WhatsApp: +49987654321",
	}}
	listings := &stubListings{}
	svc := newTestService(listings, groups, gateway)
	count, err := svc.ScrapeGroup(context.Background(), 7)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if count != 2 {
		t.Fatalf("ожидали 2 новых объявления, получили %d", count)
	}
	if groups.touched != 1 {
		t.Fatalf("ожидали одно обновление lastScraped")
	}
}

func TestHandleWebhookBatchFiltersNonText(t *testing.T) {
	listings := &stubListings{}
	svc := newTestService(listings, &stubGroups{}, &stubGateway{})
	created := svc.HandleWebhookBatch(context.Background(), []domain.InboundMessage{
		{ID: "a", Type: "image", Body: ""},
		{ID: "b", Type: "text", Body: listingText},
		{ID: "c", Type: "audio", Body: ""},
	})
	if created != 1 {
		t.Fatalf("ожидали 1 объявление из пакета, получили %d", created)
	}
	if len(listings.created) != 1 {
		t.Fatalf("нетекстовые сообщения не должны доходить до хранилища")
	}
}

func TestHandleWebhookBatchIdempotent(t *testing.T) {
	listings := &stubListings{}
	svc := newTestService(listings, &stubGroups{}, &stubGateway{})
	batch := []domain.InboundMessage{{ID: "msg-1", Type: "text", Body: listingText}}
	if created := svc.HandleWebhookBatch(context.Background(), batch); created != 1 {
		t.Fatalf("ожидали 1 объявление при первой доставке, получили %d", created)
	}
	if created := svc.HandleWebhookBatch(context.Background(), batch); created != 0 {
		t.Fatalf("повторная доставка не должна создавать дубликат, получили %d", created)
	}
}

func TestSendToGroupInactive(t *testing.T) {
	groups := &stubGroups{group: domain.MonitoredGroup{ID: 7, IsActive: false}}
	gateway := &stubGateway{}
	svc := newTestService(&stubListings{}, groups, gateway)
	err := svc.SendToGroup(context.Background(), 7, "ping")
	if !errors.Is(err, domain.ErrGroupInactive) {
		t.Fatalf("ожидали ErrGroupInactive, получили %v", err)
	}
	if len(gateway.sent) != 0 {
		t.Fatalf("сообщение не должно отправляться в отключённую группу")
	}
}
