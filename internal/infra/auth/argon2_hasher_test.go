package auth

import (
	"strings"
	"testing"

	"gatekeeper/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHasher() *argon2Hasher {
	// Low-cost parameters keep the test fast; production costs come from config.
	cfg := &config.Config{
		Auth: &config.AuthConfig{
			Argon2: config.Argon2Config{
				MemoryKiB:   8 * 1024,
				Iterations:  1,
				Parallelism: 1,
				SaltLength:  16,
				KeyLength:   32,
			},
		},
	}

	return NewArgon2Hasher(cfg).(*argon2Hasher)
}

func TestArgon2Hasher_HashAndCheck(t *testing.T) {
	hasher := newTestHasher()

	digest, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(digest, "$argon2id$"))

	assert.True(t, hasher.Check("correct horse battery staple", digest))
	assert.False(t, hasher.Check("wrong password", digest))
}

func TestArgon2Hasher_DigestsAreSalted(t *testing.T) {
	hasher := newTestHasher()

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)

	// Different salts must produce different digests for the same input.
	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Check("same password", first))
	assert.True(t, hasher.Check("same password", second))
}

func TestArgon2Hasher_CheckCorruptDigests(t *testing.T) {
	hasher := newTestHasher()

	digest, err := hasher.Hash("password")
	require.NoError(t, err)

	tests := []struct {
		name   string
		digest string
	}{
		{name: "empty", digest: ""},
		{name: "garbage", digest: "not-a-digest"},
		{name: "wrong algorithm", digest: "$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA"},
		{name: "missing sections", digest: "$argon2id$v=19$m=8192,t=1,p=1"},
		{name: "bad salt encoding", digest: "$argon2id$v=19$m=8192,t=1,p=1$!!!!$aGFzaA"},
		{name: "bad key encoding", digest: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$!!!!"},
		{name: "zero cost", digest: "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA"},
		{name: "truncated real digest", digest: digest[:len(digest)-10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Corrupt digests must fail closed, never panic.
			assert.False(t, hasher.Check("password", tt.digest))
		})
	}
}

func TestArgon2Hasher_CheckHonorsDigestParameters(t *testing.T) {
	hasher := newTestHasher()

	digest, err := hasher.Hash("password")
	require.NoError(t, err)

	// A hasher configured with different costs still verifies an old digest,
	// because the digest carries its own parameters.
	cfg := &config.Config{
		Auth: &config.AuthConfig{
			Argon2: config.Argon2Config{
				MemoryKiB:   16 * 1024,
				Iterations:  2,
				Parallelism: 2,
				SaltLength:  16,
				KeyLength:   32,
			},
		},
	}
	other := NewArgon2Hasher(cfg)

	assert.True(t, other.Check("password", digest))
}
