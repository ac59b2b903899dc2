package checkpoint

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	id "parqueo/pkg/domain"
	platformredis "parqueo/internal/platform/redis"
)

// CachedStore is a read-through cache in front of a token store. Gate
// scanners hammer GetBySecret; everything else passes through. Cache
// misses and Redis failures both fall back to the wrapped store, so the
// cache can only make lookups faster, never wrong — every mutation
// drops the affected secret keys before touching the store result.
type CachedStore struct {
	next   Store
	client *platformredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Store, client *platformredis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{next: next, client: client, ttl: ttl, logger: logger}
}

func secretKey(secret string) string { return "qr:secret:" + secret }

// cachedToken mirrors Token with the secret included; Token itself
// never serializes its secret.
type cachedToken struct {
	Token
	Secret string `json:"secret"`
}

func (s *CachedStore) GetBySecret(ctx context.Context, secret string) (*Token, error) {
	raw, err := s.client.Get(ctx, secretKey(secret)).Bytes()
	if err == nil {
		var ct cachedToken
		if jsonErr := json.Unmarshal(raw, &ct); jsonErr == nil {
			t := ct.Token
			t.Secret = ct.Secret
			return &t, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		s.client.Del(ctx, secretKey(secret))
	} else if err != redis.Nil {
		s.logger.Warn("token cache read failed", "error", err)
	}

	t, err := s.next.GetBySecret(ctx, secret)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, t)
	return t, nil
}

func (s *CachedStore) fill(ctx context.Context, t *Token) {
	ct := cachedToken{Token: *t, Secret: t.Secret}
	raw, err := json.Marshal(ct)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, secretKey(t.Secret), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("token cache write failed", "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, secrets ...string) {
	keys := make([]string, 0, len(secrets))
	for _, secret := range secrets {
		if secret != "" {
			keys = append(keys, secretKey(secret))
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("token cache invalidation failed", "error", err)
	}
}

func (s *CachedStore) Save(ctx context.Context, t *Token) error {
	s.invalidate(ctx, t.Secret)
	return s.next.Save(ctx, t)
}

func (s *CachedStore) Get(ctx context.Context, tokenID id.TokenID) (*Token, error) {
	return s.next.Get(ctx, tokenID)
}

func (s *CachedStore) GetByReservation(ctx context.Context, resID id.ReservationID) (*Token, error) {
	return s.next.GetByReservation(ctx, resID)
}

func (s *CachedStore) RotateEntry(ctx context.Context, tokenID id.TokenID, newSecret string, entryAt time.Time) (*Token, error) {
	prev, err := s.next.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, prev.Secret, newSecret)
	return s.next.RotateEntry(ctx, tokenID, newSecret, entryAt)
}

func (s *CachedStore) ConsumeExit(ctx context.Context, tokenID id.TokenID, exitAt time.Time) (*Token, error) {
	prev, err := s.next.Get(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, prev.Secret)
	return s.next.ConsumeExit(ctx, tokenID, exitAt)
}
