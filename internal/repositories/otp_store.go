package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/carelink/internal/models"
	"github.com/redis/go-redis/v9"
)

// OTPPurpose scopes a one-time code to a single flow.
type OTPPurpose string

const (
	OTPEmailVerification OTPPurpose = "email-verification"
	OTPPasswordReset     OTPPurpose = "password-reset"
)

const otpKeyPrefix = "otp:"

// OTPEntry is a pending one-time code.
type OTPEntry struct {
	Secret   string
	Attempts int
}

// claimAttempt counts an attempt and returns the secret with the new total.
// An absent key stays absent.
var claimAttempt = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
local n = redis.call('HINCRBY', KEYS[1], 'attempts', 1)
return {redis.call('HGET', KEYS[1], 'secret'), n}
`)

// consumeSecret deletes the key only while it still holds ARGV[1].
var consumeSecret = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'secret') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// OTPStore keeps pending OTP secrets in Redis, one per purpose and email.
type OTPStore struct {
	client redis.Cmdable
}

func NewOTPStore(client redis.Cmdable) *OTPStore {
	return &OTPStore{client: client}
}

func otpKey(purpose OTPPurpose, email string) string {
	return otpKeyPrefix + string(purpose) + ":" + normalizeEmail(email)
}

// Save replaces any pending code for purpose/email and resets its attempt counter.
func (s *OTPStore) Save(ctx context.Context, purpose OTPPurpose, email, secret string, ttl time.Duration) error {
	key := otpKey(purpose, email)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "secret", secret, "attempts", 0)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save otp: %w", err)
	}
	return nil
}

// Claim counts one verification attempt and returns the pending secret with
// the attempt total including this one, or models.ErrNotFound. Concurrent
// claims each see a distinct total.
func (s *OTPStore) Claim(ctx context.Context, purpose OTPPurpose, email string) (*OTPEntry, error) {
	res, err := claimAttempt.Run(ctx, s.client, []string{otpKey(purpose, email)}).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("redis claim otp: %w", err)
	}
	if len(res) != 2 {
		return nil, models.ErrNotFound
	}

	secret, _ := res[0].(string)
	attempts, _ := res[1].(int64)
	if secret == "" {
		return nil, models.ErrNotFound
	}
	return &OTPEntry{Secret: secret, Attempts: int(attempts)}, nil
}

// Consume deletes the pending code if it still holds secret. It reports
// false when the code was already consumed or replaced.
func (s *OTPStore) Consume(ctx context.Context, purpose OTPPurpose, email, secret string) (bool, error) {
	n, err := consumeSecret.Run(ctx, s.client, []string{otpKey(purpose, email)}, secret).Int()
	if err != nil {
		return false, fmt.Errorf("redis consume otp: %w", err)
	}
	return n == 1, nil
}

// Delete drops the pending code for purpose/email.
func (s *OTPStore) Delete(ctx context.Context, purpose OTPPurpose, email string) error {
	if err := s.client.Del(ctx, otpKey(purpose, email)).Err(); err != nil {
		return fmt.Errorf("redis del otp: %w", err)
	}
	return nil
}
