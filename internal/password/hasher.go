// Package password hashes and verifies user credentials. New hashes are
// argon2id in the PHC string format; bcrypt hashes written by the previous
// system are still accepted on verify so existing accounts keep working.
package password

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Params are the argon2id cost parameters. The defaults follow the OWASP
// recommendation for argon2id: memory=64MB, iterations=3, parallelism=4.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen int
}

// DefaultParams is used by NewHasher unless overridden with WithParams.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// Hasher computes and checks password hashes. Safe for concurrent use; the
// number of simultaneous argon2 computations is bounded because each one
// allocates Params.Memory KiB.
type Hasher struct {
	params Params
	sem    *semaphore.Weighted
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithParams overrides the argon2id parameters. Tests use cheap values.
func WithParams(p Params) Option {
	return func(h *Hasher) { h.params = p }
}

// NewHasher creates a Hasher allowing at most concurrency hashes at once.
func NewHasher(concurrency int, opts ...Option) *Hasher {
	if concurrency < 1 {
		concurrency = 1
	}
	h := &Hasher{
		params: DefaultParams,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash creates an argon2id hash of plaintext with a fresh random salt. The
// output format is: $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	key := argon2.IDKey([]byte(plaintext), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)
	h.sem.Release(1)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches encoded. It never returns an
// error: malformed hashes, unknown formats and a cancelled context all
// verify as false.
func (h *Hasher) Verify(ctx context.Context, plaintext, encoded string) bool {
	if isBcrypt(encoded) {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false
		}
		defer h.sem.Release(1)
		pw := []byte(plaintext)
		// bcrypt only ever hashed the first 72 bytes; x/crypto rejects longer input.
		if len(pw) > bcryptMaxLen {
			pw = pw[:bcryptMaxLen]
		}
		return bcrypt.CompareHashAndPassword([]byte(encoded), pw) == nil
	}

	p, salt, expected, ok := decodeArgon2(encoded)
	if !ok {
		return false
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false
	}
	computed := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Threads, uint32(len(expected)))
	h.sem.Release(1)

	return subtle.ConstantTimeCompare(expected, computed) == 1
}

// NeedsRehash reports whether encoded was produced by bcrypt or with
// argon2 parameters other than the hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) bool {
	if isBcrypt(encoded) {
		return true
	}
	p, _, key, ok := decodeArgon2(encoded)
	if !ok {
		return true
	}
	return p.Time != h.params.Time ||
		p.Memory != h.params.Memory ||
		p.Threads != h.params.Threads ||
		uint32(len(key)) != h.params.KeyLen
}

// bcryptMaxLen is the number of password bytes bcrypt takes into account.
const bcryptMaxLen = 72

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// decodeArgon2 parses a PHC argon2id string into its parameters, salt and key.
func decodeArgon2(encoded string) (Params, []byte, []byte, bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Params{}, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Params{}, nil, nil, false
	}

	var p Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return Params{}, nil, nil, false
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return Params{}, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return Params{}, nil, nil, false
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Params{}, nil, nil, false
	}

	p.SaltLen = len(salt)
	p.KeyLen = uint32(len(key))
	return p, salt, key, true
}
