package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marketskills/subscription-service/internal/domain"
	"github.com/marketskills/subscription-service/internal/integration/n8n"
	"github.com/marketskills/subscription-service/internal/integration/yookassa"
	"github.com/marketskills/subscription-service/internal/metrics"
	"github.com/marketskills/subscription-service/internal/repository"
)

func testMetrics() metrics.PaymentMetrics {
	return metrics.NewPaymentMetrics(prometheus.NewRegistry())
}

// mockTxRunner исполняет функцию без реальной транзакции
type mockTxRunner struct {
	calls int
}

func (m *mockTxRunner) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	m.calls++
	return fn(nil)
}

type mockTariffRepo struct {
	tariffs map[string]domain.Tariff
}

func (m *mockTariffRepo) GetByCode(ctx context.Context, code string) (domain.Tariff, error) {
	t, ok := m.tariffs[code]
	if !ok {
		return domain.Tariff{}, repository.ErrNotFound
	}
	return t, nil
}

type mockSubscriptionRepo struct {
	subs         map[int64]domain.Subscription
	nextID       int64
	createCalls  int
	updateCalls  int
	lockRequests int
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: make(map[int64]domain.Subscription), nextID: 1}
}

func (m *mockSubscriptionRepo) WithTx(tx pgx.Tx) repository.SubscriptionRepository { return m }

func (m *mockSubscriptionRepo) LatestActiveByUser(ctx context.Context, userID int64, forUpdate bool) (domain.Subscription, error) {
	if forUpdate {
		m.lockRequests++
	}
	var latest domain.Subscription
	found := false
	for _, s := range m.subs {
		if s.UserID != userID || s.Status != domain.SubscriptionStatusActive {
			continue
		}
		if !found || s.EndAt.After(latest.EndAt) {
			latest = s
			found = true
		}
	}
	if !found {
		return domain.Subscription{}, repository.ErrNotFound
	}
	return latest, nil
}

func (m *mockSubscriptionRepo) Create(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	m.createCalls++
	sub.ID = m.nextID
	m.nextID++
	sub.CreatedAt = time.Now().UTC()
	m.subs[sub.ID] = sub
	return sub, nil
}

func (m *mockSubscriptionRepo) UpdateEndAt(ctx context.Context, id int64, endAt time.Time) error {
	m.updateCalls++
	sub, ok := m.subs[id]
	if !ok {
		return repository.ErrNotFound
	}
	sub.EndAt = endAt
	m.subs[id] = sub
	return nil
}

func (m *mockSubscriptionRepo) AllActive(ctx context.Context) ([]domain.Subscription, error) {
	var out []domain.Subscription
	for _, s := range m.subs {
		if s.Status == domain.SubscriptionStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

type mockPaymentRepo struct {
	payments    map[int64]domain.Payment
	nextID      int64
	attachCalls int
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{payments: make(map[int64]domain.Payment), nextID: 1}
}

func (m *mockPaymentRepo) WithTx(tx pgx.Tx) repository.PaymentRepository { return m }

func (m *mockPaymentRepo) Create(ctx context.Context, payment domain.Payment) (domain.Payment, error) {
	payment.ID = m.nextID
	m.nextID++
	payment.CreatedAt = time.Now().UTC()
	if payment.Status == "" {
		payment.Status = domain.PaymentStatusPending
	}
	m.payments[payment.ID] = payment
	return payment, nil
}

func (m *mockPaymentRepo) GetByID(ctx context.Context, id int64) (domain.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return domain.Payment{}, repository.ErrNotFound
	}
	return p, nil
}

func (m *mockPaymentRepo) AttachProviderID(ctx context.Context, id int64, providerPaymentID string) error {
	m.attachCalls++
	p, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.ProviderPaymentID = providerPaymentID
	m.payments[id] = p
	return nil
}

func (m *mockPaymentRepo) MarkSucceeded(ctx context.Context, id int64, providerPaymentID string, payload []byte, paidAt time.Time) (domain.Payment, bool, error) {
	p, ok := m.payments[id]
	if !ok {
		return domain.Payment{}, false, repository.ErrNotFound
	}
	if p.Status != domain.PaymentStatusPending {
		return p, false, nil
	}
	p.Status = domain.PaymentStatusSucceeded
	p.ProviderPaymentID = providerPaymentID
	p.ProviderMetadata = payload
	p.PaidAt = &paidAt
	m.payments[id] = p
	return p, true, nil
}

func (m *mockPaymentRepo) SucceededByUserSince(ctx context.Context, userID int64, since time.Time) ([]domain.Payment, error) {
	var out []domain.Payment
	for id := int64(1); id < m.nextID; id++ {
		p, ok := m.payments[id]
		if !ok || p.UserID != userID || p.Status != domain.PaymentStatusSucceeded {
			continue
		}
		if p.PaidAt == nil || p.PaidAt.Before(since) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type mockUserRepo struct {
	users         map[int64]domain.User
	nextID        int64
	reminderFlags map[int64][]int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[int64]domain.User), nextID: 1, reminderFlags: make(map[int64][]int)}
}

func (m *mockUserRepo) GetOrCreate(ctx context.Context, req domain.UserRequest) (domain.User, error) {
	for _, u := range m.users {
		if u.TelegramID == req.TelegramID {
			return u, nil
		}
	}
	u := domain.User{
		ID:         m.nextID,
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		CreatedAt:  time.Now().UTC(),
	}
	m.nextID++
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) SetReminderSent(ctx context.Context, userID int64, delayHours int) error {
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	switch delayHours {
	case 24:
		u.Notification24hSent = true
	case 48:
		u.Notification48hSent = true
	}
	m.users[userID] = u
	m.reminderFlags[userID] = append(m.reminderFlags[userID], delayHours)
	return nil
}

type appendedEvent struct {
	paymentID int64
	event     string
}

type mockEventRepo struct {
	appended []appendedEvent
}

func (m *mockEventRepo) WithTx(tx pgx.Tx) repository.PaymentEventRepository { return m }

func (m *mockEventRepo) Append(ctx context.Context, paymentID int64, event string, payload []byte) error {
	m.appended = append(m.appended, appendedEvent{paymentID: paymentID, event: event})
	return nil
}

type mockProvider struct {
	err      error
	requests []yookassa.CreatePaymentRequest
	result   yookassa.CreatePaymentResult
}

func (m *mockProvider) CreatePayment(ctx context.Context, req yookassa.CreatePaymentRequest) (yookassa.CreatePaymentResult, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return yookassa.CreatePaymentResult{}, m.err
	}
	return m.result, nil
}

type mockReminderTrigger struct {
	err     error
	notices []n8n.PaymentCreatedNotice
}

func (m *mockReminderTrigger) SendPaymentCreated(ctx context.Context, notice n8n.PaymentCreatedNotice) error {
	m.notices = append(m.notices, notice)
	return m.err
}

type sentMessage struct {
	chatID int64
	text   string
}

type mockNotifier struct {
	err  error
	sent []sentMessage
}

func (m *mockNotifier) SendMessage(ctx context.Context, chatID int64, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}
