package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"campuspulse/internal/cache"
	"campuspulse/internal/domain"
)

// RedisStore keeps sessions in Redis so several instances can serve the same
// widget. Expiry is left to the key TTL, which slides on every read.
type RedisStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
}

func NewRedisStore(c *cache.RedisCache, ttl time.Duration) *RedisStore {
	return &RedisStore{cache: c, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, session domain.Session) error {
	session.UpdatedAt = time.Now()
	if err := s.cache.SetJSON(ctx, cache.KeySession(session.ID), session, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (domain.Session, error) {
	var session domain.Session
	found, err := s.cache.GetJSON(ctx, cache.KeySession(id), &session)
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return domain.Session{}, notFound(id)
	}
	if err := s.cache.Touch(ctx, cache.KeySession(id), s.ttl); err != nil {
		return domain.Session{}, fmt.Errorf("refresh session ttl: %w", err)
	}
	return session, nil
}

// Update applies fn atomically across instances. fn may run more than once
// when another instance writes the same session concurrently.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*domain.Session) error) (domain.Session, error) {
	var updated domain.Session
	err := s.cache.UpdateJSON(ctx, cache.KeySession(id), s.ttl, func(current []byte) (interface{}, error) {
		if current == nil {
			return nil, notFound(id)
		}
		var session domain.Session
		if err := json.Unmarshal(current, &session); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		if err := fn(&session); err != nil {
			return nil, err
		}
		session.UpdatedAt = time.Now()
		updated = session
		return session, nil
	})
	if err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, cache.KeySession(id), cache.KeySessionOverlay(id))
}
