// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"gatekeeper/config"
	"gatekeeper/internal/domain/service"
	"gatekeeper/internal/errors"
)

// argon2Hasher is a concrete implementation of the PasswordHasher interface using argon2id.
// Digests are stored in the PHC string format, so each digest carries its own
// cost parameters and salt and old digests keep verifying after a cost bump.
type argon2Hasher struct {
	memoryKiB   uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewArgon2Hasher is the constructor for argon2Hasher.
// It returns the implementation as a service.PasswordHasher interface.
func NewArgon2Hasher(cfg *config.Config) service.PasswordHasher {
	params := cfg.Auth.Argon2

	return &argon2Hasher{
		memoryKiB:   params.MemoryKiB,
		iterations:  params.Iterations,
		parallelism: params.Parallelism,
		saltLength:  params.SaltLength,
		keyLength:   params.KeyLength,
	}
}

// Hash generates a salted argon2id digest from a plaintext password.
func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "generate salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.iterations, h.memoryKiB, h.parallelism, h.keyLength)

	digest := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memoryKiB,
		h.iterations,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return digest, nil
}

// Check compares a plaintext password with a stored digest. The digest's own
// parameters drive the recomputation; any malformed digest simply fails the
// check instead of surfacing an error to login flows.
func (h *argon2Hasher) Check(password, digest string) bool {
	memoryKiB, iterations, parallelism, salt, key, err := parseDigest(digest)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, iterations, memoryKiB, parallelism, uint32(len(key)))

	return subtle.ConstantTimeCompare(candidate, key) == 1
}

// parseDigest splits a PHC-format argon2id string into its parameters.
func parseDigest(digest string) (memoryKiB, iterations uint32, parallelism uint8, salt, key []byte, err error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, errors.New("not an argon2id digest")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return 0, 0, 0, nil, nil, errors.Wrap(err, "parse version")
	}
	if version != argon2.Version {
		return 0, 0, 0, nil, nil, errors.New("unsupported argon2 version")
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memoryKiB, &iterations, &parallelism); err != nil {
		return 0, 0, 0, nil, nil, errors.Wrap(err, "parse cost parameters")
	}
	if memoryKiB == 0 || iterations == 0 || parallelism == 0 {
		return 0, 0, 0, nil, nil, errors.New("zero cost parameter")
	}

	salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, errors.Wrap(err, "decode salt")
	}

	key, err = base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return 0, 0, 0, nil, nil, errors.Wrap(err, "decode key")
	}
	if len(key) == 0 {
		return 0, 0, 0, nil, nil, errors.New("empty key")
	}

	return memoryKiB, iterations, parallelism, salt, key, nil
}
