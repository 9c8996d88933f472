package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// Errors returned by Hash. Verify never returns these; a digest that cannot
// be parsed verifies as false.
var (
	ErrPasswordTooShort  = errors.New("password: must be at least 8 characters")
	ErrPasswordTooWeak   = errors.New("password: must contain lowercase, uppercase, digit and symbol")
	ErrInvalidHashFormat = errors.New("password: invalid digest format")
)

// MinLength is the minimum accepted password length in runes.
const MinLength = 8

// Config holds the argon2id cost parameters.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production cost parameters: 64 MiB memory, 3
// passes, 2 lanes.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher produces and verifies argon2id digests with a fixed cost config.
type Hasher struct {
	cfg Config
}

// New builds a Hasher. A zero-value field in cfg falls back to the default.
func New(cfg Config) *Hasher {
	def := DefaultConfig()
	if cfg.Memory == 0 {
		cfg.Memory = def.Memory
	}
	if cfg.Time == 0 {
		cfg.Time = def.Time
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.SaltLength == 0 {
		cfg.SaltLength = def.SaltLength
	}
	if cfg.KeyLength == 0 {
		cfg.KeyLength = def.KeyLength
	}
	return &Hasher{cfg: cfg}
}

// CheckPolicy validates the composition policy without hashing: at least
// MinLength runes with a lowercase letter, an uppercase letter, a digit and a
// symbol. Length counts runes, not bytes, so multibyte characters count once.
func CheckPolicy(plain string) error {
	runes := []rune(plain)
	if len(runes) < MinLength {
		return ErrPasswordTooShort
	}
	var lower, upper, digit, symbol bool
	for _, r := range runes {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !lower || !upper || !digit || !symbol {
		return ErrPasswordTooWeak
	}
	return nil
}

// Hash enforces the composition policy and returns a PHC-format argon2id
// digest with a fresh random salt. Hashing the same password twice yields
// different digests.
func (h *Hasher) Hash(plain string) (string, error) {
	if err := CheckPolicy(plain); err != nil {
		return "", err
	}

	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("password: read salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	digest := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory, h.cfg.Time, h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return digest, nil
}

// Verify reports whether plain matches digest. Comparison is constant time
// over the derived keys. Malformed digests return false, never an error.
func (h *Hasher) Verify(plain, digest string) bool {
	cfg, salt, key, err := parsePHC(digest)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(plain), salt, cfg.Time, cfg.Memory, cfg.Parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(got, key) == 1
}

// NeedsUpgrade reports whether digest was produced with cost parameters below
// the hasher's active config. Malformed digests report true so a corrupted
// row gets repaired on the next successful login.
func (h *Hasher) NeedsUpgrade(digest string) bool {
	cfg, _, key, err := parsePHC(digest)
	if err != nil {
		return true
	}
	return cfg.Memory < h.cfg.Memory ||
		cfg.Time < h.cfg.Time ||
		cfg.Parallelism < h.cfg.Parallelism ||
		uint32(len(key)) < h.cfg.KeyLength
}

// DummyDigest returns a well-formed digest of a random password hashed with
// the active config. Callers compare against it when the account does not
// exist so a lookup miss costs the same as a wrong password.
func (h *Hasher) DummyDigest() string {
	salt := make([]byte, h.cfg.SaltLength)
	_, _ = rand.Read(salt)
	key := argon2.IDKey(salt, salt, h.cfg.Time, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory, h.cfg.Time, h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

func parsePHC(digest string) (Config, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Config{}, nil, nil, ErrInvalidHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return Config{}, nil, nil, ErrInvalidHashFormat
	}

	var cfg Config
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Time, &cfg.Parallelism); err != nil {
		return Config{}, nil, nil, ErrInvalidHashFormat
	}
	if cfg.Memory == 0 || cfg.Time == 0 || cfg.Parallelism == 0 {
		return Config{}, nil, nil, ErrInvalidHashFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Config{}, nil, nil, ErrInvalidHashFormat
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return Config{}, nil, nil, ErrInvalidHashFormat
	}

	cfg.SaltLength = uint32(len(salt))
	cfg.KeyLength = uint32(len(key))
	return cfg, salt, key, nil
}
