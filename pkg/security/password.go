// Package security hashes account passwords with Argon2id in PHC string form:
// $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
)

var (
	ErrInvalidHash   = errors.New("invalid argon2id hash")
	ErrEmptyPassword = errors.New("password cannot be empty")
)

var b64 = base64.RawStdEncoding

// cost is the tunable part of a hash.
type cost struct {
	memory  uint32
	passes  uint32
	lanes   uint8
	saltLen int
	keyLen  int
}

func costFrom(cfg config.PasswordConfig) cost {
	return cost{
		memory:  uint32(bound(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:  uint32(bound(cfg.ArgonTime, 1, 10)),
		lanes:   uint8(bound(cfg.ArgonParallelism, 1, 255)),
		saltLen: bound(cfg.ArgonSaltLen, 8, 64),
		keyLen:  bound(cfg.ArgonKeyLen, 16, 64),
	}
}

func (c cost) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memory, c.lanes, uint32(c.keyLen))
}

// phc is a decoded hash string.
type phc struct {
	cost
	salt []byte
	key  []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.passes, p.lanes, b64.EncodeToString(p.salt), b64.EncodeToString(p.key))
}

func parsePHC(encoded string) (phc, error) {
	var p phc
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return p, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, ErrInvalidHash
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.passes, &p.lanes); err != nil {
		return p, ErrInvalidHash
	}
	if p.memory == 0 || p.passes == 0 || p.lanes == 0 {
		return p, ErrInvalidHash
	}
	var err error
	if p.salt, err = b64.DecodeString(fields[4]); err != nil || len(p.salt) == 0 {
		return p, ErrInvalidHash
	}
	if p.key, err = b64.DecodeString(fields[5]); err != nil || len(p.key) == 0 {
		return p, ErrInvalidHash
	}
	p.saltLen, p.keyLen = len(p.salt), len(p.key)
	return p, nil
}

// HashPassword derives a fresh salted hash with the configured cost.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	p := phc{cost: costFrom(cfg)}
	p.salt = make([]byte, p.saltLen)
	if _, err := rand.Read(p.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	p.key = p.derive(password, p.salt)
	return p.String(), nil
}

// VerifyPassword reports whether password matches encoded. A malformed hash is
// an error, a mismatch is not.
func VerifyPassword(password, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(p.key, p.derive(password, p.salt)) == 1, nil
}

// NeedsRehash reports whether encoded was produced with a cost other than the
// configured one. Unreadable hashes always need one.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	p, err := parsePHC(encoded)
	if err != nil {
		return true
	}
	want := costFrom(cfg)
	return p.memory != want.memory || p.passes != want.passes || p.lanes != want.lanes || p.keyLen != want.keyLen
}

func bound(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
