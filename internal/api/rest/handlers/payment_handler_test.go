package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/service"
)

type stubPaymentService struct {
	initResult service.PaymentInitResult
	initErr    error
	payment    domain.Payment
	getErr     error
}

func (s *stubPaymentService) CreatePending(ctx context.Context, userID int64, tariffCode string) (domain.Payment, error) {
	return s.payment, s.initErr
}

func (s *stubPaymentService) InitiatePayment(ctx context.Context, req domain.PaymentRequest) (service.PaymentInitResult, error) {
	return s.initResult, s.initErr
}

func (s *stubPaymentService) GetByID(ctx context.Context, id int64) (domain.Payment, error) {
	return s.payment, s.getErr
}

func paymentRouter(svc service.PaymentService) *gin.Engine {
	r := gin.New()
	h := NewPaymentHandler(svc, zap.NewNop())
	r.POST("/api/v1/payments", h.CreatePayment)
	r.GET("/api/v1/payments/:id", h.GetPayment)
	return r
}

func TestCreatePaymentStatusMapping(t *testing.T) {
	validBody := `{"telegram_id":100500,"chat_id":555,"tariff_code":"monthly"}`

	tests := []struct {
		name       string
		body       string
		initErr    error
		wantStatus int
	}{
		{"created", validBody, nil, http.StatusCreated},
		{"missing fields", `{"telegram_id":100500}`, nil, http.StatusBadRequest},
		{"unknown tariff", validBody, domain.ErrUnknownTariff, http.StatusBadRequest},
		{"provider down", validBody, domain.ErrProviderCallFailed, http.StatusBadGateway},
		{"internal error", validBody, domain.ErrInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := paymentRouter(&stubPaymentService{
				initResult: service.PaymentInitResult{PaymentID: 1, ConfirmationURL: "https://yookassa.example/pay"},
				initErr:    tt.initErr,
			})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body: %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	r := paymentRouter(&stubPaymentService{getErr: domain.ErrPaymentNotFound})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/404", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGetPaymentOK(t *testing.T) {
	r := paymentRouter(&stubPaymentService{payment: domain.Payment{
		ID:         1,
		UserID:     7,
		TariffCode: "monthly",
		AmountRub:  1490,
		Status:     domain.PaymentStatusPending,
	}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"tariff_code":"monthly"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}
