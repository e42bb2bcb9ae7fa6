package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/internal/gateway/store"
)

// memStore is an in-memory store.Store for service tests.
type memStore struct {
	mu     sync.Mutex
	events []domain.AuditEvent
	logins map[string]domain.LoginRecord
}

func newMemStore() *memStore {
	return &memStore{logins: make(map[string]domain.LoginRecord)}
}

func (m *memStore) AuditEvents() store.AuditEvents   { return (*memAuditEvents)(m) }
func (m *memStore) LoginRecords() store.LoginRecords { return (*memLoginRecords)(m) }
func (m *memStore) ApplyMigrations() error           { return nil }
func (m *memStore) Close() error                     { return nil }
func (m *memStore) Ping(context.Context) error       { return nil }

type memAuditEvents memStore

func (m *memAuditEvents) CreateAuditEvent(_ context.Context, e domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memAuditEvents) ListAuditEvents(_ context.Context, f store.AuditFilter) ([]domain.AuditEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.AuditEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memAuditEvents) DeleteAuditEventsBefore(_ context.Context, cutoff time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	for _, e := range m.events {
		if !e.CreatedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	m.events = kept
	return nil
}

type memLoginRecords memStore

func (m *memLoginRecords) UpsertLoginRecord(_ context.Context, rec domain.LoginRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logins[rec.PrincipalID] = rec
	return nil
}

func (m *memLoginRecords) GetLoginRecord(_ context.Context, principalID string) (domain.LoginRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.logins[principalID]
	if !ok {
		return domain.LoginRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (m *memLoginRecords) DeleteLoginRecord(_ context.Context, principalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logins, principalID)
	return nil
}

func (m *memLoginRecords) CountLoginRecords(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logins), nil
}

// fakeProvider is a scriptable Provider that counts calls.
type fakeProvider struct {
	mu           sync.Mutex
	exchanges    int
	refreshes    int
	exchangeErr  error
	refreshErr   error
	result       domain.TokenResult
	refreshDelay time.Duration
}

func (p *fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://idp.example.com/authorize?state=" + state
}

func (p *fakeProvider) Exchange(_ context.Context, code, verifier string) (domain.TokenResult, error) {
	p.mu.Lock()
	p.exchanges++
	p.mu.Unlock()
	if p.exchangeErr != nil {
		return domain.TokenResult{}, p.exchangeErr
	}
	return p.result, nil
}

func (p *fakeProvider) Refresh(_ context.Context, refreshToken string) (domain.TokenResult, error) {
	p.mu.Lock()
	p.refreshes++
	p.mu.Unlock()
	if p.refreshDelay > 0 {
		time.Sleep(p.refreshDelay)
	}
	if p.refreshErr != nil {
		return domain.TokenResult{}, p.refreshErr
	}
	return p.result, nil
}

func (p *fakeProvider) exchangeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exchanges
}

func (p *fakeProvider) refreshCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshes
}
