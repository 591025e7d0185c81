package pin

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	defaultIterations = 100_000
	minIterations     = 10_000
	saltLength        = 16
	keyLength         = 32
)

// Hasher derives and verifies salted PBKDF2-SHA256 records for PINs.
// Records are encoded as "<iterations>.<saltB64>.<hashB64>"; plaintext
// is never stored.
type Hasher struct {
	iterations int
}

// NewHasher creates a Hasher with the given iteration count. Zero means
// the default of 100000.
func NewHasher(iterations int) (*Hasher, error) {
	if iterations == 0 {
		iterations = defaultIterations
	}
	if iterations < minIterations {
		return nil, errors.New("pin iterations must be >= 10000")
	}
	return &Hasher{iterations: iterations}, nil
}

// Hash derives a PBKDF2-SHA256 record with a fresh random salt. Two
// calls with the same PIN yield different records.
func (h *Hasher) Hash(pin string) (string, error) {
	if pin == "" {
		return "", errors.New("pin must not be empty")
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	hash := pbkdf2.Key([]byte(pin), salt, h.iterations, keyLength, sha256.New)

	return fmt.Sprintf(
		"%d.%s.%s",
		h.iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash),
	), nil
}

// Verify re-derives pin with the record's stored salt and iteration
// count and compares digests in constant time. It fails closed: any
// structurally invalid record verifies false, never panics or errors.
func (h *Hasher) Verify(pin, record string) bool {
	iterations, salt, hash, ok := parseRecord(record)
	if !ok {
		return false
	}

	computed := pbkdf2.Key([]byte(pin), salt, iterations, len(hash), sha256.New)
	return subtle.ConstantTimeCompare(computed, hash) == 1
}

func parseRecord(record string) (int, []byte, []byte, bool) {
	parts := strings.Split(record, ".")
	if len(parts) != 3 {
		return 0, nil, nil, false
	}

	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return 0, nil, nil, false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(salt) == 0 {
		return 0, nil, nil, false
	}

	hash, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(hash) == 0 {
		return 0, nil, nil, false
	}

	return iterations, salt, hash, true
}
