package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"wa-listings/internal/adapters/repo"
	"wa-listings/internal/adapters/webhook"
	"wa-listings/internal/adapters/whatsapp"
	"wa-listings/internal/domain"
	"wa-listings/internal/infra/cache"
	"wa-listings/internal/infra/config"
	"wa-listings/internal/infra/db"
	httpinfra "wa-listings/internal/infra/http"
	applog "wa-listings/internal/infra/log"
	"wa-listings/internal/infra/metrics"
	"wa-listings/internal/infra/queue"
	"wa-listings/internal/usecase/extract"
	"wa-listings/internal/usecase/pipeline"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		listings domain.ListingRepo
		groups   domain.GroupRepo
	)
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: нет подключения к БД")
		}
		defer pool.Close()
		pg := repo.NewPostgres(pool)
		listings, groups = pg, pg
	} else {
		logger.Warn().Msg("api: PG_DSN не задан, используется хранилище в памяти")
		mem := repo.NewMemory()
		listings, groups = mem, mem
	}

	var (
		dedupe      domain.Cache
		scrapeQueue domain.ScrapeQueue
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		dedupe = cache.NewRedis(redisClient)
		scrapeQueue = queue.NewRedisScrapeQueue(redisClient, cfg.Queues.Scrape)
	} else {
		logger.Warn().Msg("api: REDIS_ADDR не задан, защита от повторных вебхуков отключена")
	}

	gateway, err := whatsapp.NewClient(whatsapp.Config{
		BaseURL:       cfg.WhatsApp.BaseURL,
		AccessToken:   cfg.WhatsApp.AccessToken,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		RetryCount:    cfg.WhatsApp.RetryCount,
		RetryDelay:    cfg.WhatsApp.RetryDelay,
		Timeout:       cfg.WhatsApp.Timeout,
	}, logger.With().Str("component", "whatsapp").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("api: не удалось создать клиента WhatsApp")
	}

	svc := pipeline.NewService(listings, groups, gateway, dedupe, logger.With().Str("component", "pipeline").Logger())
	webhookHandler := webhook.NewHandler(svc, cfg.WhatsApp.VerifyToken, logger.With().Str("component", "webhook").Logger())

	server := httpinfra.NewServer(logger.With().Str("component", "http").Logger())
	api := &apiHandler{listings: listings, groups: groups, pipeline: svc, queue: scrapeQueue}

	server.Router.Route("/api", func(r chi.Router) {
		r.Get("/webhook", webhookHandler.HandleVerify)
		r.Post("/webhook", webhookHandler.HandleIncoming)

		r.Get("/listings", api.listListings)
		r.Post("/listings", api.createListing)
		r.Get("/listings/{id}", api.getListing)
		r.Patch("/listings/{id}", api.updateListing)
		r.Delete("/listings/{id}", api.deleteListing)

		r.Get("/groups", api.listGroups)
		r.Post("/groups", api.registerGroup)
		r.Delete("/groups/{id}", api.removeGroup)
		r.Patch("/groups/{id}/status", api.setGroupStatus)
		r.Post("/groups/{id}/scrape", api.scrapeGroup)
		r.Post("/groups/{id}/send", api.sendToGroup)

		r.Post("/messages/process", api.processMessage)
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: server.Router}
	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("api: старт")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: сервер остановлен")
		}
	}()
	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type apiHandler struct {
	listings domain.ListingRepo
	groups   domain.GroupRepo
	pipeline *pipeline.Service
	queue    domain.ScrapeQueue
}

func (h *apiHandler) listListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListListings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}
	if listings == nil {
		listings = []domain.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (h *apiHandler) getListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	listing, err := h.listings.GetListing(id)
	if errors.Is(err, domain.ErrListingNotFound) {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *apiHandler) createListing(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var draft domain.ListingDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid listing data")
		return
	}
	if !extract.IsComplete(draft) {
		writeError(w, http.StatusBadRequest, "Invalid listing data")
		return
	}
	listing, err := h.listings.CreateListing(draft)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create listing")
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *apiHandler) updateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	var patch domain.ListingPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid update data")
		return
	}
	listing, err := h.listings.UpdateListing(id, patch)
	if errors.Is(err, domain.ErrListingNotFound) {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *apiHandler) deleteListing(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	deleted, err := h.listings.DeleteListing(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete listing")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.ListGroups()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load groups")
		return
	}
	if groups == nil {
		groups = []domain.MonitoredGroup{}
	}
	writeJSON(w, http.StatusOK, groups)
}

type registerGroupRequest struct {
	Name       string `json:"name"`
	InviteLink string `json:"inviteLink"`
}

func (h *apiHandler) registerGroup(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req registerGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid group data")
		return
	}
	if req.Name == "" || req.InviteLink == "" {
		writeError(w, http.StatusBadRequest, "Invalid group data")
		return
	}
	group, err := h.pipeline.RegisterGroup(r.Context(), req.Name, req.InviteLink)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to register group")
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h *apiHandler) removeGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	removed, err := h.pipeline.RemoveGroup(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove group")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type groupStatusRequest struct {
	IsActive bool `json:"isActive"`
}

func (h *apiHandler) setGroupStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	var req groupStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status data")
		return
	}
	group, err := h.pipeline.SetGroupActive(r.Context(), id, req.IsActive)
	if errors.Is(err, domain.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update group")
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *apiHandler) scrapeGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	// async=1 ставит задачу в очередь для cmd/scraper вместо обхода
	// в рамках запроса.
	if r.URL.Query().Get("async") == "1" && h.queue != nil {
		job := domain.ScrapeJob{ID: uuid.NewString(), GroupID: id, EnqueuedAt: time.Now().UTC()}
		if err := h.queue.Enqueue(r.Context(), job); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to enqueue scrape")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": job.ID})
		return
	}

	count, err := h.pipeline.ScrapeGroup(r.Context(), id)
	if errors.Is(err, domain.ErrGroupNotFound) {
		writeError(w, http.StatusNotFound, "Group not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to scrape group")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"newListings": count})
}

type sendRequest struct {
	Text string `json:"text"`
}

func (h *apiHandler) sendToGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	defer r.Body.Close()
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "Invalid message data")
		return
	}
	err := h.pipeline.SendToGroup(r.Context(), id, req.Text)
	switch {
	case errors.Is(err, domain.ErrGroupNotFound):
		writeError(w, http.StatusNotFound, "Group not found")
	case errors.Is(err, domain.ErrGroupInactive):
		writeError(w, http.StatusConflict, "Group is inactive")
	case err != nil:
		writeError(w, http.StatusBadGateway, "failed to send message")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

type processMessageRequest struct {
	Text string `json:"text"`
}

func (h *apiHandler) processMessage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req processMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message data")
		return
	}
	listing, err := h.pipeline.ProcessMessage(r.Context(), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process message")
		return
	}
	if listing == nil {
		writeJSON(w, http.StatusOK, map[string]any{"listing": nil})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"listing": listing})
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
