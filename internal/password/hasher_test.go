package password

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// cheapParams keeps argon2 fast in tests.
var cheapParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newTestHasher() *Hasher {
	return NewHasher(2, WithParams(cheapParams))
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	hash, err := h.Hash(ctx, "my-secret-password-123")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Errorf("unexpected hash format: %s", hash)
	}
	if strings.Contains(hash, "my-secret-password-123") {
		t.Fatal("hash must not contain the plaintext")
	}

	if !h.Verify(ctx, "my-secret-password-123", hash) {
		t.Error("expected correct password to verify")
	}
	if h.Verify(ctx, "wrong-password", hash) {
		t.Error("expected wrong password to fail verification")
	}
}

func TestHash_UniqueSalts(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	hash1, err := h.Hash(ctx, "same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	hash2, err := h.Hash(ctx, "same-password")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if hash1 == hash2 {
		t.Error("expected different salts to produce different hashes")
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	h := newTestHasher()

	tests := []struct {
		name string
		hash string
	}{
		{"empty string", ""},
		{"random text", "not-a-hash"},
		{"plaintext stored", "password"},
		{"too few parts", "$argon2id$v=19$m=65536"},
		{"wrong algorithm", "$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=16$m=65536,t=3,p=4$c2FsdA$aGFzaA"},
		{"zero params", "$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA"},
		{"corrupted salt", "$argon2id$v=19$m=65536,t=3,p=4$!!!invalid$aGFzaA"},
		{"corrupted hash", "$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$!!!invalid"},
		{"truncated bcrypt", "$2a$10$short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if h.Verify(context.Background(), "password", tt.hash) {
				t.Error("expected invalid hash to fail verification")
			}
		})
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	h := newTestHasher()
	legacy, err := bcrypt.GenerateFromPassword([]byte("Legacy1!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	if !h.Verify(context.Background(), "Legacy1!", string(legacy)) {
		t.Error("expected legacy bcrypt hash to verify")
	}
	if h.Verify(context.Background(), "legacy1!", string(legacy)) {
		t.Error("expected wrong password to fail against bcrypt hash")
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Error("bcrypt hashes should be flagged for rehash")
	}
}

func TestVerify_LegacyBcryptLongPassword(t *testing.T) {
	h := newTestHasher()
	long := strings.Repeat("Ab1!", 20) // 80 bytes
	legacy, err := bcrypt.GenerateFromPassword([]byte(long[:72]), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	if !h.Verify(context.Background(), long, string(legacy)) {
		t.Error("expected password over 72 bytes to verify against its bcrypt hash")
	}
	if h.Verify(context.Background(), "X"+long[1:], string(legacy)) {
		t.Error("a difference within the first 72 bytes must fail")
	}
}

func TestNeedsRehash(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	current, err := h.Hash(ctx, "pw")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}
	if h.NeedsRehash(current) {
		t.Error("hash with current params should not need rehash")
	}

	stronger := NewHasher(1, WithParams(Params{Time: 2, Memory: 2048, Threads: 1, KeyLen: 32, SaltLen: 16}))
	if !stronger.NeedsRehash(current) {
		t.Error("hash with weaker params should need rehash")
	}
	if !h.NeedsRehash("garbage") {
		t.Error("unparseable hashes should need rehash")
	}
}

func TestHash_CancelledContext(t *testing.T) {
	h := NewHasher(1, WithParams(cheapParams))

	// Hold the only slot so Acquire must wait on the context.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "pw"); err == nil {
		t.Error("expected error when context is cancelled while waiting")
	}
	if h.Verify(ctx, "pw", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0$aGFzaGhhc2hoYXNo") {
		t.Error("expected false when context is cancelled while waiting")
	}
}
