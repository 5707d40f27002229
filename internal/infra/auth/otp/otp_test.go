package otp

import (
	"context"
	"testing"
	"time"

	"gatekeeper/config"
	"gatekeeper/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// memoryStore is an in-memory EphemeralStore with real TTL semantics.
type memoryStore struct {
	values map[string][]byte
	expiry map[string]time.Time
	clock  *fakeClock
}

func newMemoryStore(clock *fakeClock) *memoryStore {
	return &memoryStore{
		values: make(map[string][]byte),
		expiry: make(map[string]time.Time),
		clock:  clock,
	}
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.values[key] = append([]byte(nil), value...)
	s.expiry[key] = s.clock.Now().Add(ttl)

	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := s.values[key]
	if !ok || !s.clock.Now().Before(s.expiry[key]) {
		return nil, false, nil
	}

	return append([]byte(nil), value...), true, nil
}

func (s *memoryStore) Take(ctx context.Context, key string) ([]byte, bool, error) {
	value, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return nil, false, err
	}

	return value, true, s.Delete(ctx, key)
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	delete(s.values, key)
	delete(s.expiry, key)

	return nil
}

func newOTPConfig(strategy string) *config.Config {
	return &config.Config{
		OTP: &config.OTPConfig{
			Strategy: strategy,
			Secret:   "otp-shared-secret-for-tests",
			Step:     5 * time.Minute,
			TTL:      5 * time.Minute,
		},
	}
}

func TestNewOTPService_StrategySelection(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newMemoryStore(clock)

	svc, err := NewOTPService(newOTPConfig(StrategyHOTP), store, clock)
	require.NoError(t, err)
	assert.IsType(t, &hotpService{}, svc)

	svc, err = NewOTPService(newOTPConfig(StrategyRandom), store, clock)
	require.NoError(t, err)
	assert.IsType(t, &randomOTPService{}, svc)

	_, err = NewOTPService(newOTPConfig("bogus"), store, clock)
	assert.Error(t, err)
}

func TestHOTPService_GenerateAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	svc, err := NewHOTPService(newOTPConfig(StrategyHOTP), clock)
	require.NoError(t, err)

	code, err := svc.Generate(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	ok, err := svc.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	// Wrong code and wrong subject both fail.
	ok, err = svc.Verify(context.Background(), "alice@example.com", "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Verify(context.Background(), "bob@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHOTPService_AcceptsAdjacentStep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	svc, err := NewHOTPService(newOTPConfig(StrategyHOTP), clock)
	require.NoError(t, err)

	code, err := svc.Generate(context.Background(), "alice@example.com")
	require.NoError(t, err)

	// One step later the code is still inside the skew window.
	clock.Advance(5 * time.Minute)
	ok, err := svc.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	// Two steps out it is gone.
	clock.Advance(5 * time.Minute)
	ok, err = svc.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHOTPService_RequiresSecret(t *testing.T) {
	cfg := newOTPConfig(StrategyHOTP)
	cfg.OTP.Secret = ""

	_, err := NewHOTPService(cfg, &fakeClock{now: time.Now()})
	assert.Error(t, err)
}

func TestRandomOTPService_GenerateAndVerify(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newMemoryStore(clock)
	svc := NewRandomOTPService(newOTPConfig(StrategyRandom), store)

	code, err := svc.Generate(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	ok, err := svc.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	// Consumed on success: the same code never verifies twice.
	ok, err = svc.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomOTPService_ExpiredCode(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newMemoryStore(clock)
	svc := NewRandomOTPService(newOTPConfig(StrategyRandom), store)

	code, err := svc.Generate(context.Background(), "alice@example.com")
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)

	ok, err := svc.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRandomOTPService_RegenerateReplacesCode(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	store := newMemoryStore(clock)
	svc := NewRandomOTPService(newOTPConfig(StrategyRandom), store)

	first, err := svc.Generate(context.Background(), "alice@example.com")
	require.NoError(t, err)
	second, err := svc.Generate(context.Background(), "alice@example.com")
	require.NoError(t, err)

	if first != second {
		ok, err := svc.Verify(context.Background(), "alice@example.com", first)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	ok, err := svc.Verify(context.Background(), "alice@example.com", second)
	require.NoError(t, err)
	assert.True(t, ok)
}

var _ service.OTPService = (*hotpService)(nil)
var _ service.OTPService = (*randomOTPService)(nil)
