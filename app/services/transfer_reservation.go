package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReservationStore holds short-lived claims on transfer destinations so two
// concurrent calls cannot bridge to the same agent
type ReservationStore interface {
	Reserve(ctx context.Context, transferNumberID uint, callSID string) (bool, error)
	Release(ctx context.Context, transferNumberID uint) error
}

// RedisReservationStore implements ReservationStore with SETNX keys
type RedisReservationStore struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisReservationStore creates a store; keys expire after ttl
func NewRedisReservationStore(rc *redis.Client, prefix string, ttl time.Duration) ReservationStore {
	return &RedisReservationStore{rc: rc, prefix: prefix, ttl: ttl}
}

func (s *RedisReservationStore) key(transferNumberID uint) string {
	return fmt.Sprintf("%stransfer:reservation:%d", s.prefix, transferNumberID)
}

// Reserve claims the destination for callSID; false when another call holds it
func (s *RedisReservationStore) Reserve(ctx context.Context, transferNumberID uint, callSID string) (bool, error) {
	ok, err := s.rc.SetNX(ctx, s.key(transferNumberID), callSID, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve transfer number %d: %w", transferNumberID, err)
	}
	return ok, nil
}

func (s *RedisReservationStore) Release(ctx context.Context, transferNumberID uint) error {
	return s.rc.Del(ctx, s.key(transferNumberID)).Err()
}

// NoopReservationStore grants every reservation
type NoopReservationStore struct{}

func (NoopReservationStore) Reserve(ctx context.Context, transferNumberID uint, callSID string) (bool, error) {
	return true, nil
}

func (NoopReservationStore) Release(ctx context.Context, transferNumberID uint) error { return nil }
