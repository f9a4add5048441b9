package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher is a one-way, salted, slow hash. Encoded output embeds its
// algorithm, cost and salt so Verify needs nothing else.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

var (
	errEmptyPassword = errors.New("password is empty")
	errEmptyHash     = errors.New("password hash is empty")
	errUnknownHash   = errors.New("unrecognized password hash format")
)

// BcryptHasher hashes with bcrypt at the configured cost.
type BcryptHasher struct {
	Cost int
}

// Hash hashes plaintext password using bcrypt.
func (h BcryptHasher) Hash(password string) (string, error) {
	if len(password) == 0 {
		return "", errEmptyPassword
	}
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(hash), nil
}

// Verify compares plaintext password with stored hash.
func (h BcryptHasher) Verify(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, errEmptyHash
	}
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt: %w", err)
	}
}

// Argon2idParams configures Argon2id hashing.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams is a reasonable interactive-login baseline.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Argon2idHasher produces PHC strings: $argon2id$v=19$m=..,t=..,p=..$salt$key.
type Argon2idHasher struct {
	Params Argon2idParams
}

func (h Argon2idHasher) Hash(password string) (string, error) {
	if len(password) == 0 {
		return "", errEmptyPassword
	}
	p := h.Params
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

func (h Argon2idHasher) Verify(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, errEmptyHash
	}
	p, salt, expected, err := decodeArgon2id(encoded)
	if err != nil {
		return false, err
	}
	// Refuse parameters far above what we issue; a tampered row must not pin the CPU.
	limits := h.Params
	if p.MemoryKiB > limits.MemoryKiB*2 || p.Iterations > limits.Iterations*2 || p.Parallelism > limits.Parallelism*2 {
		return false, errUnknownHash
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, errUnknownHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2idParams{}, nil, nil, errUnknownHash
	}
	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, errUnknownHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, errUnknownHash
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 || len(salt) > 64 {
		return Argon2idParams{}, nil, nil, errUnknownHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2idParams{}, nil, nil, errUnknownHash
	}
	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}

// MultiHasher hashes with Primary and verifies whichever format the stored
// hash is in, so switching algorithms does not lock out existing users.
type MultiHasher struct {
	Primary  PasswordHasher
	Bcrypt   BcryptHasher
	Argon2id Argon2idHasher
}

// NewHasher builds a MultiHasher whose primary algorithm is "bcrypt" or "argon2id".
func NewHasher(algorithm string, bcryptCost int) (*MultiHasher, error) {
	m := &MultiHasher{
		Bcrypt:   BcryptHasher{Cost: bcryptCost},
		Argon2id: Argon2idHasher{Params: DefaultArgon2idParams()},
	}
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "bcrypt":
		if bcryptCost != 0 && (bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost) {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		m.Primary = m.Bcrypt
	case "argon2id":
		m.Primary = m.Argon2id
	default:
		return nil, fmt.Errorf("unsupported password hasher %q", algorithm)
	}
	return m, nil
}

func (m *MultiHasher) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *MultiHasher) Verify(password, encoded string) (bool, error) {
	switch {
	case encoded == "":
		return false, errEmptyHash
	case strings.HasPrefix(encoded, "$argon2id$"):
		return m.Argon2id.Verify(password, encoded)
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return m.Bcrypt.Verify(password, encoded)
	default:
		return false, errUnknownHash
	}
}
