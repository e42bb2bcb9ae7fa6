package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adminbridge/authgate/internal/gateway/domain"
	"github.com/adminbridge/authgate/pkg/cryptox"
	"github.com/adminbridge/authgate/pkg/slogx"
)

var (
	ErrNoSession        = errors.New("no cached tokens for principal")
	ErrRefreshFailed    = errors.New("token_refresh_failed")
	ErrExpiredNoRefresh = errors.New("token_expired_no_refresh")
)

// RefreshBuffer is how long before the real expiry a cached access token is
// treated as stale. Refreshing early keeps the token usable for the full
// duration of whatever upstream call it authorizes.
const RefreshBuffer = 300 * time.Second

// AccessTokenSource yields a usable upstream access token for a principal.
// Callers never see refresh tokens.
type AccessTokenSource interface {
	AccessToken(ctx context.Context, principalID string) (string, error)
}

// TokenCache holds the provider tokens per principal and refreshes them when
// they come within RefreshBuffer of expiry. Refresh tokens are sealed before
// they touch the cache and opened only for the refresh call.
type TokenCache struct {
	Provider Provider
	Audit    *AuditService

	// Buffer overrides RefreshBuffer when positive.
	Buffer time.Duration

	mu      sync.Mutex
	records map[string]*cacheEntry
	now     func() time.Time
}

// cacheEntry pairs the stored record with a per-principal refresh lock so
// that N concurrent stale reads produce exactly one provider call.
type cacheEntry struct {
	refreshMu sync.Mutex
	record    domain.UpstreamTokenRecord
}

// NewTokenCache creates an empty cache.
func NewTokenCache(provider Provider, audit *AuditService) *TokenCache {
	return &TokenCache{
		Provider: provider,
		Audit:    audit,
		records:  make(map[string]*cacheEntry),
		now:      time.Now,
	}
}

// Put stores the tokens from a successful exchange or inbound refresh. The
// refresh token is sealed before storage; an empty refresh token leaves the
// record refresh-incapable.
func (c *TokenCache) Put(principalID string, result domain.TokenResult) error {
	record := domain.UpstreamTokenRecord{
		PrincipalID: principalID,
		AccessToken: result.AccessToken,
		ExpiresAt:   result.ExpiresAt,
		ObtainedAt:  c.now(),
	}
	if result.RefreshToken != "" {
		sealed, err := cryptox.Seal([]byte(result.RefreshToken))
		if err != nil {
			return err
		}
		record.SealedRefreshToken = sealed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.records[principalID]
	if !ok {
		entry = &cacheEntry{}
		c.records[principalID] = entry
	}
	entry.record = record
	return nil
}

// AccessToken returns a fresh access token for the principal, refreshing
// against the provider when the cached one is within RefreshBuffer of
// expiry. Concurrent callers for the same principal share one refresh.
func (c *TokenCache) AccessToken(ctx context.Context, principalID string) (string, error) {
	c.mu.Lock()
	entry, ok := c.records[principalID]
	c.mu.Unlock()
	if !ok {
		return "", ErrNoSession
	}

	// Serialize per principal. The winner refreshes; the rest find a fresh
	// record when they get the lock and return it without a provider call.
	entry.refreshMu.Lock()
	defer entry.refreshMu.Unlock()

	c.mu.Lock()
	record := entry.record
	c.mu.Unlock()
	now := c.now()
	if record.FreshFor(now, c.refreshBuffer()) {
		return record.AccessToken, nil
	}

	if !record.CanRefresh() {
		return "", ErrExpiredNoRefresh
	}

	refreshToken, err := cryptox.Open(record.SealedRefreshToken)
	if err != nil {
		return "", err
	}

	result, err := c.Provider.Refresh(ctx, string(refreshToken))
	if err != nil {
		slogx.FromContext(ctx).Warn("upstream refresh failed",
			"principal_id", principalID, "err", err)
		c.Audit.RefreshFailure(ctx, principalID, "provider rejected refresh")
		return "", errors.Join(ErrRefreshFailed, err)
	}

	// Providers may rotate the refresh token; keep the old one when the
	// response omits it.
	newRecord := domain.UpstreamTokenRecord{
		PrincipalID:        principalID,
		AccessToken:        result.AccessToken,
		SealedRefreshToken: record.SealedRefreshToken,
		ExpiresAt:          result.ExpiresAt,
		ObtainedAt:         c.now(),
	}
	if result.RefreshToken != "" {
		sealed, err := cryptox.Seal([]byte(result.RefreshToken))
		if err != nil {
			return "", err
		}
		newRecord.SealedRefreshToken = sealed
	}
	c.mu.Lock()
	entry.record = newRecord
	c.mu.Unlock()

	return result.AccessToken, nil
}

func (c *TokenCache) refreshBuffer() time.Duration {
	if c.Buffer > 0 {
		return c.Buffer
	}
	return RefreshBuffer
}

// Get returns a copy of the cached record for a principal.
func (c *TokenCache) Get(principalID string) (domain.UpstreamTokenRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.records[principalID]
	if !ok {
		return domain.UpstreamTokenRecord{}, false
	}
	return entry.record, true
}

// Evict drops the cached tokens for a principal, typically on logout.
func (c *TokenCache) Evict(principalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, principalID)
}

// SweepExpired drops records that are past expiry and cannot refresh.
// Returns how many were removed.
func (c *TokenCache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var removed int
	for principalID, entry := range c.records {
		if !entry.record.FreshFor(now, 0) && !entry.record.CanRefresh() {
			delete(c.records, principalID)
			removed++
		}
	}
	return removed
}

// Len reports the number of cached principals.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
