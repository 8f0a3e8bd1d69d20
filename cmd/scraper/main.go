package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"wa-listings/internal/adapters/repo"
	"wa-listings/internal/adapters/whatsapp"
	"wa-listings/internal/domain"
	"wa-listings/internal/infra/cache"
	"wa-listings/internal/infra/config"
	"wa-listings/internal/infra/db"
	applog "wa-listings/internal/infra/log"
	"wa-listings/internal/infra/metrics"
	"wa-listings/internal/infra/queue"
	"wa-listings/internal/usecase/pipeline"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	if cfg.PGDSN == "" {
		logger.Fatal().Msg("scraper: не задан адрес БД (PG_DSN)")
	}
	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: нет подключения к БД")
	}
	defer pool.Close()
	pg := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("scraper: не задан адрес Redis (REDIS_ADDR)")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	scrapeQueue := queue.NewRedisScrapeQueue(redisClient, cfg.Queues.Scrape)
	dedupe := cache.NewRedis(redisClient)

	gateway, err := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		RetryCount:    cfg.WhatsApp.RetryCount,
		RetryDelay:    cfg.WhatsApp.RetryDelay,
		Timeout:       cfg.WhatsApp.Timeout,
	}, logger.With().Str("component", "whatsapp").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("scraper: не удалось создать клиента WhatsApp")
	}

	svc := pipeline.NewService(pg, pg, gateway, dedupe, logger.With().Str("component", "pipeline").Logger())

	worker := &scrapeWorker{
		log:     logger,
		queue:   scrapeQueue,
		groups:  pg,
		service: svc,
	}

	go enqueueActiveGroups(ctx, logger, pg, scrapeQueue, cfg.Scrape.Interval)

	logger.Info().Msg("scraper: запуск обработки очереди")
	worker.Run(ctx)
	logger.Info().Msg("scraper: остановлен")
}

type scrapeWorker struct {
	log     zerolog.Logger
	queue   domain.ScrapeQueue
	groups  domain.GroupRepo
	service *pipeline.Service
}

func (w *scrapeWorker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error().Err(err).Msg("scraper: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}

		jobLog := w.log.With().Str("job_id", job.ID).Int64("group", job.GroupID).Logger()
		count, err := w.service.ScrapeGroup(ctx, job.GroupID)
		if err != nil {
			jobLog.Error().Err(err).Msg("scraper: обход завершился ошибкой")
			continue
		}
		jobLog.Info().Int("created", count).Msg("scraper: обход выполнен")
	}
}

// enqueueActiveGroups по расписанию ставит в очередь задачи на обход
// всех активных групп.
func enqueueActiveGroups(ctx context.Context, logger zerolog.Logger, groups domain.GroupRepo, scrapeQueue domain.ScrapeQueue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		all, err := groups.ListGroups()
		if err != nil {
			logger.Error().Err(err).Msg("scraper: ошибка выборки групп")
			continue
		}
		for _, group := range all {
			if !group.IsActive {
				continue
			}
			job := domain.ScrapeJob{ID: uuid.NewString(), GroupID: group.ID, EnqueuedAt: time.Now().UTC()}
			if err := scrapeQueue.Enqueue(ctx, job); err != nil {
				logger.Error().Err(err).Int64("group", group.ID).Msg("scraper: не удалось поставить задачу")
			}
		}
	}
}
