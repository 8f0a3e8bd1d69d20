package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"wa-listings/internal/domain"
	"wa-listings/internal/infra/metrics"
)

// Config описывает настройки клиента WhatsApp Cloud API.
type Config struct {
	BaseURL       string
	AccessToken   string
	PhoneNumberID string
	RetryCount    int
	RetryDelay    time.Duration
	Timeout       time.Duration
}

// Client — шлюз к WhatsApp Cloud API с повторами и линейным бэкоффом.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

var _ domain.Gateway = (*Client)(nil)

var inviteLinkRegex = regexp.MustCompile(`(?i)^(?:https?://)?(?:chat\.whatsapp\.com/)?([A-Za-z0-9_+-]+)$`)

// NewClient создаёт клиента. Отсутствие учётных данных — ошибка
// конфигурации: клиент без токена не конструируется.
func NewClient(cfg Config, log zerolog.Logger) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, errors.New("whatsapp: не задан токен доступа (WA_ACCESS_TOKEN)")
	}
	if cfg.PhoneNumberID == "" {
		return nil, errors.New("whatsapp: не задан идентификатор номера (WA_PHONE_NUMBER_ID)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://graph.facebook.com/v19.0"
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}, nil
}

// SetHTTPClient подменяет транспорт, используется в тестах.
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	if httpClient != nil {
		c.httpClient = httpClient
	}
}

// Target приводит ссылку-приглашение к идентификатору группы провайдера.
func Target(inviteLink string) string {
	trim := strings.TrimSpace(inviteLink)
	if m := inviteLinkRegex.FindStringSubmatch(trim); m != nil {
		return m[1]
	}
	return trim
}

// Send отправляет текстовое сообщение получателю.
func (c *Client) Send(ctx context.Context, target, text string) error {
	body := map[string]any{
		"messaging_product": "whatsapp",
		"to":                Target(target),
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	endpoint := fmt.Sprintf("/%s/messages", url.PathEscape(c.cfg.PhoneNumberID))
	_, err := c.doWithRetry(ctx, http.MethodPost, endpoint, body, "send_message")
	return err
}

type fetchEnvelope struct {
	Messages []struct {
		Type string `json:"type"`
		Text struct {
			Body string `json:"body"`
		} `json:"text"`
	} `json:"messages"`
}

// FetchMessages забирает свежие сообщения группы. Пустой список —
// нормальный результат: основной транспорт это вебхук, а не пул.
func (c *Client) FetchMessages(ctx context.Context, group domain.MonitoredGroup) ([]string, error) {
	endpoint := fmt.Sprintf("/%s/messages", url.PathEscape(Target(group.InviteLink)))
	data, err := c.doWithRetry(ctx, http.MethodGet, endpoint, nil, "fetch_messages")
	if err != nil {
		return nil, err
	}
	var envelope fetchEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	texts := make([]string, 0, len(envelope.Messages))
	for _, msg := range envelope.Messages {
		if msg.Type != "" && msg.Type != "text" {
			continue
		}
		texts = append(texts, msg.Text.Body)
	}
	return texts, nil
}

// JoinGroup вступает в группу по ссылке-приглашению.
func (c *Client) JoinGroup(ctx context.Context, inviteLink string) error {
	body := map[string]any{"invite_link": inviteLink}
	_, err := c.doWithRetry(ctx, http.MethodPost, "/groups/join", body, "join_group")
	return err
}

// LeaveGroup покидает группу.
func (c *Client) LeaveGroup(ctx context.Context, target string) error {
	endpoint := fmt.Sprintf("/groups/%s/leave", url.PathEscape(Target(target)))
	_, err := c.doWithRetry(ctx, http.MethodPost, endpoint, nil, "leave_group")
	return err
}

// doWithRetry выполняет запрос с повторами: задержка растёт линейно с
// номером попытки, ошибка последней попытки возвращается вызывающему.
func (c *Client) doWithRetry(ctx context.Context, method, endpoint string, body any, operation string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryCount; attempt++ {
		data, err := c.do(ctx, method, endpoint, body, operation)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt == c.cfg.RetryCount {
			break
		}
		metrics.IncGatewayRetries()
		c.log.Warn().Err(err).Int("attempt", attempt).Str("operation", operation).Msg("whatsapp: повтор запроса")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
		}
	}
	return nil, lastErr
}

type apiError struct {
	Error struct {
		Message string      `json:"message"`
		Code    json.Number `json:"code"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, operation string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	requestURL := strings.TrimRight(c.cfg.BaseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("whatsapp", operation, endpoint, start, err)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	// Провайдер может вернуть 200 с конвертом-ошибкой, поэтому тело
	// проверяется до признания запроса успешным.
	var envelope apiError
	if len(data) > 0 {
		_ = json.Unmarshal(data, &envelope)
	}
	if resp.StatusCode >= 400 || envelope.Error.Message != "" {
		gatewayErr := &domain.GatewayError{
			Code:    envelope.Error.Code.String(),
			Message: envelope.Error.Message,
		}
		if gatewayErr.Message == "" {
			gatewayErr.Message = fmt.Sprintf("request failed: status %d", resp.StatusCode)
		}
		if gatewayErr.Code == "" {
			gatewayErr.Code = "UNKNOWN_ERROR"
		}
		return nil, gatewayErr
	}
	return data, nil
}
