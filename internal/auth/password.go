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

// Argon2id parameters, per current OWASP guidance.
const (
	hashIterations  = 3
	hashMemoryKiB   = 64 * 1024
	hashParallelism = 1
	hashLength      = 32
	saltLength      = 16
)

// ErrMalformedHash reports a stored credential that cannot be parsed.
// It indicates corruption or a hash written by another tool, not a
// wrong password.
var ErrMalformedHash = errors.New("auth: malformed password hash")

// HashPassword derives an Argon2id hash of password and encodes it in
// PHC form ($argon2id$v=19$m=...,t=...,p=...$salt$key) for storage.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, hashIterations, hashMemoryKiB, hashParallelism, hashLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemoryKiB, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// VerifyPassword reports whether password matches the stored PHC hash.
// The stored parameters drive the comparison, so existing hashes keep
// verifying after the package defaults change.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), h.salt, h.iterations, h.memoryKiB, h.parallelism, uint32(len(h.key))) //nolint:gosec // G115: key length always fits uint32
	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

// phcHash is a decoded $argon2id$... credential string.
type phcHash struct {
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" { //nolint:mnd // PHC format has exactly 6 $-delimited fields
		return nil, ErrMalformedHash
	}
	if fields[1] != "argon2id" {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: argon2 version %d", ErrMalformedHash, version)
	}

	var h phcHash
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memoryKiB, &h.iterations, &h.parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil {
		return nil, fmt.Errorf("%w: key: %v", ErrMalformedHash, err)
	}
	return &h, nil
}
