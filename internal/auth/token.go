// Package auth guards client connections with a shared access token. The
// plaintext token is configured at startup, hashed immediately, and every
// request is verified against the hash in constant time.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

var ErrInvalidHash = errors.New("invalid token hash format")

// HashToken generates an argon2id hash in PHC format:
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
func HashToken(token string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(token), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads, b64Salt, b64Hash), nil
}

// VerifyToken checks token against an argon2id hash using constant-time
// comparison.
func VerifyToken(token, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var memory uint32
	var time uint32
	var threads uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads)
	if err != nil {
		return false, fmt.Errorf("parsing hash params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decoding salt: %w", err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decoding hash: %w", err)
	}

	computedHash := argon2.IDKey([]byte(token), salt, time, memory, threads, uint32(len(expectedHash)))

	return subtle.ConstantTimeCompare(expectedHash, computedHash) == 1, nil
}

// Guard verifies presented tokens. A zero-value Guard (no token configured)
// admits everything.
type Guard struct {
	hash string
}

// NewGuard hashes the configured token. An empty token disables auth.
func NewGuard(token string) (*Guard, error) {
	g := &Guard{}
	if token == "" {
		return g, nil
	}
	hash, err := HashToken(token)
	if err != nil {
		return nil, err
	}
	g.hash = hash
	return g, nil
}

// Enabled reports whether connections must present a token.
func (g *Guard) Enabled() bool {
	return g != nil && g.hash != ""
}

// Allow checks a presented token.
func (g *Guard) Allow(token string) bool {
	if !g.Enabled() {
		return true
	}
	if token == "" {
		return false
	}
	ok, err := VerifyToken(token, g.hash)
	return err == nil && ok
}
