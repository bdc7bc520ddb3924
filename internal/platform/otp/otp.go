// Package otp issues and verifies short-lived one-time passcodes for email
// login. Codes live in Redis under a per-account key with a TTL; a successful
// verification consumes the code.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
)

var (
	ErrNotRequested = errors.New("no code requested for this account")
	ErrCodeMismatch = errors.New("invalid verification code")
)

// CodeLength is the number of digits in a generated code.
const CodeLength = 6

// Store issues and verifies one-time codes.
type Store interface {
	// Issue generates a fresh code for (kind, email), replacing any
	// outstanding one, and returns it for delivery.
	Issue(ctx context.Context, kind, email string) (string, error)
	// Verify checks the supplied code and consumes it on success.
	Verify(ctx context.Context, kind, email, code string) error
}

// RedisStore keeps codes in Redis with the configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(kind, email string) string {
	return fmt.Sprintf("otp:%s:%s", kind, email)
}

func (s *RedisStore) Issue(ctx context.Context, kind, email string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	// A re-request overwrites the previous code and resets the TTL.
	if err := s.client.Set(ctx, key(kind, email), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Verify(ctx context.Context, kind, email, code string) error {
	k := key(kind, email)
	stored, err := s.client.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotRequested
		}
		return fmt.Errorf("fetch code: %w", err)
	}
	if stored != code {
		return ErrCodeMismatch
	}
	if err := s.client.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// generateCode returns a uniformly random numeric code of CodeLength digits.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < CodeLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n), nil
}
