package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wa-listings/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:       baseURL,
		AccessToken:   "test-token",
		PhoneNumberID: "123456",
		RetryCount:    3,
		RetryDelay:    time.Millisecond,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("не ожидали ошибку конструктора: %v", err)
	}
	return client
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Config{PhoneNumberID: "123"}, zerolog.Nop()); err == nil {
		t.Fatalf("ожидали ошибку конфигурации без токена")
	}
	if _, err := NewClient(Config{AccessToken: "t"}, zerolog.Nop()); err == nil {
		t.Fatalf("ожидали ошибку конфигурации без идентификатора номера")
	}
}

func TestSendSetsBearerAndBody(t *testing.T) {
	var captured struct {
		auth string
		body map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []any{map[string]string{"id": "wamid.1"}}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.Send(context.Background(), "https://chat.whatsapp.com/AbCdEf123", "hello"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if captured.auth != "Bearer test-token" {
		t.Fatalf("ожидали bearer-токен, получили %q", captured.auth)
	}
	if captured.body["to"] != "AbCdEf123" {
		t.Fatalf("ожидали распарсенный идентификатор группы, получили %v", captured.body["to"])
	}
	if captured.body["messaging_product"] != "whatsapp" {
		t.Fatalf("ожидали messaging_product=whatsapp")
	}
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "temporary", "code": 131000}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []any{}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	if err := client.Send(context.Background(), "group", "hello"); err != nil {
		t.Fatalf("ожидали успех после повторов: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", attempts)
	}
}

func TestSendExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "rate limited", "code": 130429}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Send(context.Background(), "group", "hello")
	if err == nil {
		t.Fatalf("ожидали ошибку после исчерпания повторов")
	}
	var gatewayErr *domain.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("ожидали GatewayError, получили %T: %v", err, err)
	}
	if gatewayErr.Code != "130429" {
		t.Fatalf("ожидали код провайдера 130429, получили %q", gatewayErr.Code)
	}
	if attempts != 3 {
		t.Fatalf("ожидали 3 попытки, получили %d", attempts)
	}
}

func TestSendDetectsEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 200 OK, но в теле конверт с ошибкой.
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "invalid recipient", "code": 131026}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.Send(context.Background(), "group", "hello")
	var gatewayErr *domain.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("ожидали GatewayError из конверта, получили %v", err)
	}
	if gatewayErr.Code != "131026" {
		t.Fatalf("ожидали код 131026, получили %q", gatewayErr.Code)
	}
}

func TestFetchMessagesEmptyIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []any{}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	texts, err := client.FetchMessages(context.Background(), domain.MonitoredGroup{InviteLink: "group"})
	if err != nil {
		t.Fatalf("пустой список — нормальный результат: %v", err)
	}
	if len(texts) != 0 {
		t.Fatalf("ожидали пустой список, получили %d", len(texts))
	}
}

func TestFetchMessagesReturnsBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []any{
			map[string]any{"type": "text", "text": map[string]string{"body": "first"}},
			map[string]any{"type": "image"},
			map[string]any{"type": "text", "text": map[string]string{"body": "second"}},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	texts, err := client.FetchMessages(context.Background(), domain.MonitoredGroup{InviteLink: "group"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(texts) != 2 || texts[0] != "first" || texts[1] != "second" {
		t.Fatalf("ожидали два текстовых тела, получили %v", texts)
	}
}

func TestTarget(t *testing.T) {
	cases := map[string]string{
		"https://chat.whatsapp.com/AbCdEf123": "AbCdEf123",
		"chat.whatsapp.com/XyZ":               "XyZ",
		"AbCdEf123":                           "AbCdEf123",
		"  raw target  ":                      "raw target",
	}
	for input, expected := range cases {
		if got := Target(input); got != expected {
			t.Fatalf("Target(%q): ожидали %q, получили %q", input, expected, got)
		}
	}
}
