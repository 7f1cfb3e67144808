package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/service"
)

type stubReminderService struct {
	result   service.ReminderResult
	err      error
	requests []service.ReminderRequest
}

func (s *stubReminderService) HandleCallback(ctx context.Context, req service.ReminderRequest) (service.ReminderResult, error) {
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func postReminder(svc ReminderCallbackHandler, body string) *httptest.ResponseRecorder {
	r := gin.New()
	h := NewReminderHandler(svc, zap.NewNop())
	r.POST("/reminder/notify", h.HandleReminderNotify)

	req := httptest.NewRequest(http.MethodPost, "/reminder/notify", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReminderNotifyOK(t *testing.T) {
	stub := &stubReminderService{result: service.ReminderResult{
		Status:           service.ReminderStatusOK,
		NotificationType: "reminder_24h",
	}}

	w := postReminder(stub, `{"delay_hours":24,"payment_id":1,"chat_id":555}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"notification_type":"reminder_24h"`) {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(stub.requests) != 1 || stub.requests[0].PaymentID != 1 {
		t.Errorf("requests = %+v", stub.requests)
	}
}

func TestReminderNotifyMissingFields(t *testing.T) {
	stub := &stubReminderService{}

	w := postReminder(stub, `{"delay_hours":24}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "missing_fields") {
		t.Errorf("body = %s", w.Body.String())
	}
	if len(stub.requests) != 0 {
		t.Error("service called with incomplete payload")
	}
}

func TestReminderNotifyInvalidDelay(t *testing.T) {
	stub := &stubReminderService{err: domain.ErrInvalidInput}

	w := postReminder(stub, `{"delay_hours":12,"payment_id":1,"chat_id":555}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestReminderNotifySendFailure(t *testing.T) {
	stub := &stubReminderService{err: errors.New("telegram is down")}

	w := postReminder(stub, `{"delay_hours":24,"payment_id":1,"chat_id":555}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if !strings.Contains(w.Body.String(), "send_failed") {
		t.Errorf("body = %s", w.Body.String())
	}
}
