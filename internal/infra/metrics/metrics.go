package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	MessagesAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listing_messages_accepted_total",
		Help: "Сообщения, из которых создано объявление",
	})
	MessagesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "listing_messages_rejected_total",
		Help: "Сообщения, отклонённые экстрактором или валидатором",
	})
	ScrapeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scrape_errors_total",
		Help: "Ошибки выборки сообщений при обходе групп",
	})
	GatewayRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gateway_retries_total",
		Help: "Повторные попытки запросов к провайдеру",
	})

	ScrapeRequestsByGroup = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scrape_requests_by_group_total",
		Help: "Количество обходов по группам",
	}, []string{"group_id"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesAccepted,
		MessagesRejected,
		ScrapeErrors,
		GatewayRetries,
		ScrapeRequestsByGroup,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// IncMessageAccepted увеличивает счётчик принятых сообщений.
func IncMessageAccepted() {
	MessagesAccepted.Inc()
}

// IncMessageRejected увеличивает счётчик отклонённых сообщений.
func IncMessageRejected() {
	MessagesRejected.Inc()
}

// IncScrapeErrors увеличивает счётчик ошибок обхода.
func IncScrapeErrors() {
	ScrapeErrors.Inc()
}

// IncGatewayRetries увеличивает счётчик повторов шлюза.
func IncGatewayRetries() {
	GatewayRetries.Inc()
}

// IncScrapeForGroup увеличивает счётчик обходов для группы.
func IncScrapeForGroup(groupID int64) {
	ScrapeRequestsByGroup.WithLabelValues(strconv.FormatInt(groupID, 10)).Inc()
}
