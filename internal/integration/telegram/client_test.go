package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/marketskills/subscription-service/internal/domain"
)

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody sendMessageBody

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BotToken: "123:abc", APIBase: srv.URL}, zap.NewNop())

	if err := client.SendMessage(context.Background(), 555, "привет"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q, want /bot123:abc/sendMessage", gotPath)
	}
	if gotBody.ChatID != 555 || gotBody.Text != "привет" {
		t.Errorf("body = %+v", gotBody)
	}
}

func TestSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"description":"bot was blocked by the user"}`))
	}))
	defer srv.Close()

	client := NewClient(Config{BotToken: "123:abc", APIBase: srv.URL}, zap.NewNop())

	err := client.SendMessage(context.Background(), 555, "привет")
	var extErr *domain.ExternalServiceError
	if !errors.As(err, &extErr) {
		t.Fatalf("err = %T (%v), want *domain.ExternalServiceError", err, err)
	}
	if extErr.StatusCode != http.StatusForbidden {
		t.Errorf("status code = %d, want 403", extErr.StatusCode)
	}
}
