package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wa-listings/internal/domain"
	"wa-listings/internal/infra/metrics"
	"wa-listings/internal/usecase/extract"
)

// Окно, в течение которого повторно доставленное провайдером сообщение
// считается дубликатом.
const dedupeTTL = 24 * time.Hour

// Service прогоняет входящие сообщения через экстрактор и управляет
// жизненным циклом отслеживаемых групп.
type Service struct {
	listings domain.ListingRepo
	groups   domain.GroupRepo
	gateway  domain.Gateway
	cache    domain.Cache
	log      zerolog.Logger
}

// NewService создаёт оркестратор пайплайна.
func NewService(listings domain.ListingRepo, groups domain.GroupRepo, gateway domain.Gateway, cache domain.Cache, log zerolog.Logger) *Service {
	return &Service{listings: listings, groups: groups, gateway: gateway, cache: cache, log: log}
}

// ProcessMessage превращает текст сообщения в объявление.
// Возвращает nil без ошибки, если сообщение не похоже на объявление:
// молчаливый отказ корректен, в группах много постороннего трафика.
func (s *Service) ProcessMessage(ctx context.Context, text string) (*domain.Listing, error) {
	if !extract.IsSendable(text) {
		metrics.IncMessageRejected()
		s.log.Debug().Msg("pipeline: сообщение отклонено предварительной проверкой")
		return nil, nil
	}

	draft := extract.Message(text)
	if !extract.IsComplete(draft) {
		metrics.IncMessageRejected()
		s.log.Debug().Msg("pipeline: не удалось извлечь все обязательные поля")
		return nil, nil
	}

	listing, err := s.listings.CreateListing(draft)
	if err != nil {
		return nil, fmt.Errorf("сохранение объявления: %w", err)
	}
	metrics.IncMessageAccepted()
	s.log.Info().Int64("listing", listing.ID).Str("title", listing.Title).Msg("pipeline: создано объявление")
	return &listing, nil
}

// HandleWebhookBatch обрабатывает пакет сообщений из вебхука.
// Нетекстовые сообщения пропускаются, отказ по одному сообщению не влияет
// на остальные. Возвращает число созданных объявлений.
func (s *Service) HandleWebhookBatch(ctx context.Context, messages []domain.InboundMessage) int {
	created := 0
	for _, msg := range messages {
		if !msg.IsText() {
			s.log.Debug().Str("type", msg.Type).Str("id", msg.ID).Msg("pipeline: пропущено нетекстовое сообщение")
			continue
		}
		if err := s.processOnce(ctx, msg, &created); err != nil {
			s.log.Error().Err(err).Str("id", msg.ID).Msg("pipeline: ошибка обработки сообщения")
		}
	}
	return created
}

// processOnce защищает от повторной доставки вебхука провайдером:
// одно и то же сообщение создаёт объявление максимум один раз.
func (s *Service) processOnce(ctx context.Context, msg domain.InboundMessage, created *int) error {
	run := func() error {
		listing, err := s.ProcessMessage(ctx, msg.Body)
		if err != nil {
			return err
		}
		if listing != nil {
			*created++
		}
		return nil
	}
	if s.cache == nil || msg.ID == "" {
		return run()
	}
	return s.cache.Once("wa:msg:"+msg.ID, dedupeTTL, run)
}

// RegisterGroup регистрирует группу. Никакой сетевой валидации ссылки
// не выполняется, регистрация — локальная запись.
func (s *Service) RegisterGroup(ctx context.Context, name, inviteLink string) (domain.MonitoredGroup, error) {
	group, err := s.groups.RegisterGroup(name, inviteLink, true)
	if err != nil {
		return domain.MonitoredGroup{}, fmt.Errorf("регистрация группы: %w", err)
	}
	s.log.Info().Int64("group", group.ID).Str("name", group.Name).Msg("pipeline: зарегистрирована группа")
	return group, nil
}

// SetGroupActive переключает статус группы.
func (s *Service) SetGroupActive(ctx context.Context, id int64, isActive bool) (domain.MonitoredGroup, error) {
	return s.groups.SetGroupActive(id, isActive)
}

// RemoveGroup удаляет группу из реестра.
func (s *Service) RemoveGroup(ctx context.Context, id int64) (bool, error) {
	return s.groups.RemoveGroup(id)
}

// ScrapeGroup забирает свежие сообщения группы и прогоняет их через
// экстрактор. Возвращает число новых объявлений.
//
// Неактивная группа даёт 0 без обращения к провайдеру и без обновления
// lastScraped. Ошибка провайдера тоже даёт 0 (с записью в лог), lastScraped
// при этом не сдвигается. Успешный обход обновляет lastScraped даже при
// нуле новых объявлений: метка отражает "мы посмотрели", а не "мы нашли".
func (s *Service) ScrapeGroup(ctx context.Context, id int64) (int, error) {
	group, err := s.groups.GetGroup(id)
	if err != nil {
		return 0, fmt.Errorf("получение группы: %w", err)
	}
	if !group.IsActive {
		s.log.Debug().Int64("group", id).Msg("pipeline: группа отключена, обход пропущен")
		return 0, nil
	}

	metrics.IncScrapeForGroup(group.ID)
	texts, err := s.gateway.FetchMessages(ctx, group)
	if err != nil {
		metrics.IncScrapeErrors()
		s.log.Error().Err(err).Int64("group", id).Msg("pipeline: не удалось получить сообщения группы")
		return 0, nil
	}

	created := 0
	for _, text := range texts {
		listing, err := s.ProcessMessage(ctx, text)
		if err != nil {
			s.log.Error().Err(err).Int64("group", id).Msg("pipeline: ошибка обработки сообщения при обходе")
			continue
		}
		if listing != nil {
			created++
		}
	}

	if _, err := s.groups.TouchScraped(group.ID); err != nil {
		s.log.Error().Err(err).Int64("group", id).Msg("pipeline: не удалось обновить lastScraped")
	}
	s.log.Info().Int64("group", id).Int("created", created).Msg("pipeline: обход завершён")
	return created, nil
}

// SendToGroup отправляет текст в группу через шлюз провайдера.
func (s *Service) SendToGroup(ctx context.Context, id int64, text string) error {
	group, err := s.groups.GetGroup(id)
	if err != nil {
		return fmt.Errorf("получение группы: %w", err)
	}
	if !group.IsActive {
		return domain.ErrGroupInactive
	}
	if err := s.gateway.Send(ctx, group.InviteLink, text); err != nil {
		return fmt.Errorf("отправка в группу %d: %w", id, err)
	}
	return nil
}
