package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/simple-crm/utils"
	"github.com/redis/go-redis/v9"
)

// ChallengeStore holds captcha target angles until they are verified or expire
type ChallengeStore interface {
	Put(ctx context.Context, id string, angle int, ttl time.Duration) error
	// Take returns and removes the challenge
	Take(ctx context.Context, id string) (int, bool, error)
}

// RedisChallengeStore lets any instance verify a challenge issued by another
type RedisChallengeStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisChallengeStore(rc *redis.Client, prefix string) *RedisChallengeStore {
	return &RedisChallengeStore{rc: rc, prefix: prefix}
}

func (s *RedisChallengeStore) key(id string) string {
	return s.prefix + fmt.Sprintf(utils.CaptchaChallengeKey, id)
}

func (s *RedisChallengeStore) Put(ctx context.Context, id string, angle int, ttl time.Duration) error {
	return s.rc.Set(ctx, s.key(id), strconv.Itoa(angle), ttl).Err()
}

func (s *RedisChallengeStore) Take(ctx context.Context, id string) (int, bool, error) {
	v, err := s.rc.GetDel(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	angle, ok := parseAngle(v)
	return angle, ok, nil
}

type challengeEntry struct {
	angle     int
	expiresAt time.Time
}

// MemoryChallengeStore is the single-instance fallback when Redis is disabled
type MemoryChallengeStore struct {
	mu sync.Mutex
	m  map[string]challengeEntry
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{m: make(map[string]challengeEntry)}
}

func (s *MemoryChallengeStore) Put(_ context.Context, id string, angle int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := utils.UTCNow()
	for k, v := range s.m {
		if now.After(v.expiresAt) {
			delete(s.m, k)
		}
	}
	s.m[id] = challengeEntry{angle: angle, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryChallengeStore) Take(_ context.Context, id string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[id]
	if !ok {
		return 0, false, nil
	}
	delete(s.m, id)
	if utils.UTCNow().After(e.expiresAt) {
		return 0, false, nil
	}
	return e.angle, true, nil
}
