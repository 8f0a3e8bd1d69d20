package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wa-listings/internal/domain"
	"wa-listings/internal/usecase/pipeline"
)

// Дискриминатор полезной нагрузки WhatsApp Cloud API.
const expectedObject = "whatsapp_business_account"

// Handler обслуживает вебхук провайдера.
type Handler struct {
	pipeline    *pipeline.Service
	verifyToken string
	log         zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(pipeline *pipeline.Service, verifyToken string, log zerolog.Logger) *Handler {
	return &Handler{pipeline: pipeline, verifyToken: verifyToken, log: log}
}

// payload повторяет формат уведомлений Cloud API: entry → changes →
// value → messages.
type payload struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// HandleVerify отвечает на challenge подписки: echo hub.challenge при
// совпадении токена и режима subscribe, иначе 403.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		h.log.Warn().Str("mode", mode).Msg("webhook: отклонена верификация")
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// HandleIncoming принимает пакет сообщений. Несовпадающий дискриминатор
// объекта — 404; пустой список сообщений — корректный no-op.
func (h *Handler) HandleIncoming(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var body payload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid payload"})
		return
	}
	if body.Object != expectedObject {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}

	var messages []domain.InboundMessage
	for _, entry := range body.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				id := msg.ID
				if id == "" {
					id = uuid.NewString()
				}
				messages = append(messages, domain.InboundMessage{
					ID:   id,
					Type: msg.Type,
					Body: msg.Text.Body,
				})
			}
		}
	}

	created := h.pipeline.HandleWebhookBatch(r.Context(), messages)
	h.log.Info().Int("messages", len(messages)).Int("created", created).Msg("webhook: пакет обработан")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "created": created})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
