package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/yashrajoria/basket-service/models"
	"github.com/yashrajoria/basket-service/services"
)

// ---- call log shared by the mocks, to check step ordering ----

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// ---- mock store ----

type mockStore struct {
	log *callLog

	baskets map[string]*models.Basket
	getErr  error
	listErr error
	saveErr error
	delErr  error

	saved   []*models.Basket
	deleted []string

	onDelete func()
}

func newMockStore(log *callLog, baskets ...*models.Basket) *mockStore {
	m := &mockStore{log: log, baskets: map[string]*models.Basket{}}
	for _, b := range baskets {
		m.baskets[b.UserName] = b
	}
	return m
}

func (m *mockStore) GetBasket(_ context.Context, userName string) (*models.Basket, bool, error) {
	m.log.add("get:" + userName)
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	b, ok := m.baskets[userName]
	return b, ok, nil
}

func (m *mockStore) ListBaskets(_ context.Context) ([]*models.Basket, error) {
	m.log.add("list")
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []*models.Basket{}
	for _, b := range m.baskets {
		out = append(out, b)
	}
	return out, nil
}

func (m *mockStore) SaveBasket(_ context.Context, b *models.Basket) error {
	m.log.add("save:" + b.UserName)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, b)
	m.baskets[b.UserName] = b
	return nil
}

func (m *mockStore) DeleteBasket(_ context.Context, userName string) error {
	m.log.add("delete:" + userName)
	if m.onDelete != nil {
		m.onDelete()
	}
	if m.delErr != nil {
		return m.delErr
	}
	m.deleted = append(m.deleted, userName)
	delete(m.baskets, userName)
	return nil
}

// ---- mock publisher ----

type mockPublisher struct {
	log    *callLog
	err    error
	id     string
	events []models.CheckoutEvent
}

func (m *mockPublisher) Publish(_ context.Context, evt models.CheckoutEvent) (models.PublishReceipt, error) {
	m.log.add("publish:" + evt.UserName)
	m.events = append(m.events, evt)
	if m.err != nil {
		return models.PublishReceipt{}, m.err
	}
	id := m.id
	if id == "" {
		id = "evt-1"
	}
	return models.PublishReceipt{MessageID: id, Publisher: "mock"}, nil
}

// ---- mock stale reporter ----

type mockStaleReporter struct {
	err     error
	reports []services.StaleBasket
}

func (m *mockStaleReporter) ReportStaleBasket(ctx context.Context, s services.StaleBasket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.reports = append(m.reports, s)
	return m.err
}

// ---- mock metrics ----

type mockMetrics struct {
	mu     sync.Mutex
	counts map[string]int
	done   chan string
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{counts: map[string]int{}, done: make(chan string, 32)}
}

func (m *mockMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	m.counts[name]++
	m.mu.Unlock()
	m.done <- name
	return nil
}

func (m *mockMetrics) RecordValue(_ context.Context, name string, _ float64, _ map[string]string) error {
	m.done <- name
	return nil
}

func (m *mockMetrics) RecordLatency(_ context.Context, name string, _ time.Duration, _ map[string]string) error {
	m.done <- name
	return nil
}

// waitFor blocks until metric name is recorded or the timeout passes.
func (m *mockMetrics) waitFor(name string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		select {
		case got := <-m.done:
			if got == name {
				return true
			}
		case <-deadline:
			return false
		}
	}
}

var testEvent = services.EventConfig{
	Source:     "com.shop.basket.checkoutbasket",
	DetailType: "CheckoutBasket",
	BusName:    "ShopEventBus",
}

func alicesBasket() *models.Basket {
	return &models.Basket{
		UserName: "alice",
		Items: []models.BasketItem{
			{Price: 10, Attributes: map[string]any{"productId": "p1"}},
			{Price: 5, Attributes: map[string]any{"productId": "p2"}},
		},
	}
}

// ---- goroutine-safe store and publisher ----

type syncStore struct {
	mu    sync.Mutex
	inner *mockStore
}

func newSyncStore(baskets ...*models.Basket) *syncStore {
	return &syncStore{inner: newMockStore(nil, baskets...)}
}

func (s *syncStore) GetBasket(ctx context.Context, userName string) (*models.Basket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.GetBasket(ctx, userName)
}

func (s *syncStore) ListBaskets(ctx context.Context) ([]*models.Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ListBaskets(ctx)
}

func (s *syncStore) SaveBasket(ctx context.Context, b *models.Basket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.SaveBasket(ctx, b)
}

func (s *syncStore) DeleteBasket(ctx context.Context, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.DeleteBasket(ctx, userName)
}

type syncPublisher struct {
	mu     sync.Mutex
	events []models.CheckoutEvent
}

func (p *syncPublisher) Publish(_ context.Context, evt models.CheckoutEvent) (models.PublishReceipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return models.PublishReceipt{MessageID: evt.UserName, Publisher: "mock"}, nil
}

func (p *syncPublisher) totals() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]float64{}
	for _, e := range p.events {
		out[e.UserName] = e.Detail.TotalPrice()
	}
	return out
}
