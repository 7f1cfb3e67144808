package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/marketskills/subscription-service/internal/domain"
	"go.uber.org/zap"
)

type reconciliationFixture struct {
	svc      *ReconciliationService
	runner   *mockTxRunner
	payments *mockPaymentRepo
	events   *mockEventRepo
	subs     *mockSubscriptionRepo
	now      time.Time
}

func newReconciliationFixture(t *testing.T) *reconciliationFixture {
	t.Helper()

	payments := newMockPaymentRepo()
	events := &mockEventRepo{}
	subs := newMockSubscriptionRepo()
	runner := &mockTxRunner{}
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	engine := newTestEngine(testTariffs(), subs, now)
	svc := NewReconciliationService(runner, payments, events, subs, engine, nil, testMetrics(), zap.NewNop())
	svc.now = func() time.Time { return now }

	return &reconciliationFixture{
		svc:      svc,
		runner:   runner,
		payments: payments,
		events:   events,
		subs:     subs,
		now:      now,
	}
}

func (f *reconciliationFixture) pendingPayment(t *testing.T, userID int64, tariffCode string) domain.Payment {
	t.Helper()
	p, err := f.payments.Create(context.Background(), domain.Payment{
		UserID:     userID,
		TariffCode: tariffCode,
		AmountRub:  1490,
		Provider:   domain.ProviderYooKassa,
		Status:     domain.PaymentStatusPending,
	})
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	return p
}

func succeededWebhook(paymentID int64, chatID int64, tariff string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.succeeded",
		"object": {
			"id": "2c8f0f00-000f-5000-8000-18db351245c7",
			"status": "succeeded",
			"metadata": {"payment_db_id": %d, "chat_id": %d, "tariff": %q}
		}
	}`, paymentID, chatID, tariff))
}

func TestHandleSucceededActivatesSubscription(t *testing.T) {
	f := newReconciliationFixture(t)
	p := f.pendingPayment(t, 7, "monthly")

	res, err := f.svc.Handle(context.Background(), succeededWebhook(p.ID, 555, "monthly"))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if res.Status != ReconciliationOK {
		t.Errorf("status = %q, want %q", res.Status, ReconciliationOK)
	}
	if res.AlreadyProcessed {
		t.Error("AlreadyProcessed = true on first delivery")
	}
	if res.ChatID != 555 {
		t.Errorf("chat_id = %d, want 555", res.ChatID)
	}

	stored, _ := f.payments.GetByID(context.Background(), p.ID)
	if stored.Status != domain.PaymentStatusSucceeded {
		t.Errorf("payment status = %s, want succeeded", stored.Status)
	}
	if stored.PaidAt == nil || !stored.PaidAt.Equal(f.now) {
		t.Errorf("paid_at = %v, want %s", stored.PaidAt, f.now)
	}
	if stored.ProviderPaymentID == "" {
		t.Error("provider_payment_id not attached")
	}

	wantEnd := time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC)
	if !res.SubscriptionEnd.Equal(wantEnd) {
		t.Errorf("subscription end = %s, want %s", res.SubscriptionEnd, wantEnd)
	}
	if f.subs.createCalls != 1 {
		t.Errorf("subscription createCalls = %d, want 1", f.subs.createCalls)
	}
	if len(f.events.appended) != 1 || f.events.appended[0].event != EventPaymentSucceeded {
		t.Errorf("appended events = %+v, want one payment.succeeded", f.events.appended)
	}
}

func TestHandleDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newReconciliationFixture(t)
	p := f.pendingPayment(t, 7, "monthly")
	body := succeededWebhook(p.ID, 555, "monthly")

	first, err := f.svc.Handle(context.Background(), body)
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	paidAfterFirst, _ := f.payments.GetByID(context.Background(), p.ID)

	second, err := f.svc.Handle(context.Background(), body)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}

	if !second.AlreadyProcessed {
		t.Error("second delivery not marked AlreadyProcessed")
	}
	if !second.SubscriptionEnd.Equal(first.SubscriptionEnd) {
		t.Errorf("subscription end moved on duplicate: %s -> %s", first.SubscriptionEnd, second.SubscriptionEnd)
	}

	// Подписка продлена ровно один раз
	if f.subs.createCalls != 1 || f.subs.updateCalls != 0 {
		t.Errorf("createCalls=%d updateCalls=%d, want 1/0", f.subs.createCalls, f.subs.updateCalls)
	}

	// paid_at не перетирается повторной доставкой
	paidAfterSecond, _ := f.payments.GetByID(context.Background(), p.ID)
	if !paidAfterSecond.PaidAt.Equal(*paidAfterFirst.PaidAt) {
		t.Errorf("paid_at changed on duplicate: %s -> %s", paidAfterFirst.PaidAt, paidAfterSecond.PaidAt)
	}

	// Но аудиторский след пополняется каждой доставкой
	if len(f.events.appended) != 2 {
		t.Errorf("appended events = %d, want 2", len(f.events.appended))
	}
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	f := newReconciliationFixture(t)
	p := f.pendingPayment(t, 7, "monthly")

	body := []byte(fmt.Sprintf(`{
		"event": "payment.canceled",
		"object": {"id": "x", "metadata": {"payment_db_id": %d}}
	}`, p.ID))

	res, err := f.svc.Handle(context.Background(), body)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.Status != ReconciliationIgnored {
		t.Errorf("status = %q, want %q", res.Status, ReconciliationIgnored)
	}

	// Никаких записей: платеж остается pending, подписок нет
	stored, _ := f.payments.GetByID(context.Background(), p.ID)
	if stored.Status != domain.PaymentStatusPending {
		t.Errorf("payment status = %s, want pending", stored.Status)
	}
	if f.runner.calls != 0 {
		t.Errorf("transaction started %d times for ignored event", f.runner.calls)
	}
	if len(f.events.appended) != 0 || f.subs.createCalls != 0 {
		t.Error("side effects applied for ignored event")
	}
}

func TestHandleMissingCorrelationID(t *testing.T) {
	f := newReconciliationFixture(t)

	body := []byte(`{
		"event": "payment.succeeded",
		"object": {"id": "x", "metadata": {"chat_id": 555, "tariff": "monthly"}}
	}`)

	_, err := f.svc.Handle(context.Background(), body)
	if !errors.Is(err, domain.ErrMissingCorrelationID) {
		t.Fatalf("err = %v, want ErrMissingCorrelationID", err)
	}
	if f.runner.calls != 0 {
		t.Error("transaction started without correlation id")
	}
}

func TestHandleUnknownPayment(t *testing.T) {
	f := newReconciliationFixture(t)

	_, err := f.svc.Handle(context.Background(), succeededWebhook(999, 555, "monthly"))
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("err = %v, want ErrPaymentNotFound", err)
	}
	if f.subs.createCalls != 0 {
		t.Error("subscription created for unknown payment")
	}
}

func TestHandleInvalidBody(t *testing.T) {
	f := newReconciliationFixture(t)

	_, err := f.svc.Handle(context.Background(), []byte("{not json"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestHandleSecondPaymentExtendsWindow(t *testing.T) {
	f := newReconciliationFixture(t)
	p1 := f.pendingPayment(t, 7, "monthly")
	p2 := f.pendingPayment(t, 7, "stable")

	first, err := f.svc.Handle(context.Background(), succeededWebhook(p1.ID, 555, "monthly"))
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}

	second, err := f.svc.Handle(context.Background(), succeededWebhook(p2.ID, 555, "stable"))
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}

	// Второй платеж продлевает то же окно от его конца
	wantEnd := addMonths(first.SubscriptionEnd, 3)
	if !second.SubscriptionEnd.Equal(wantEnd) {
		t.Errorf("subscription end = %s, want %s", second.SubscriptionEnd, wantEnd)
	}
	if f.subs.createCalls != 1 || f.subs.updateCalls != 1 {
		t.Errorf("createCalls=%d updateCalls=%d, want 1/1", f.subs.createCalls, f.subs.updateCalls)
	}
}
