package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/wardrobe-backend/pkg/config"
)

func testCost() config.PasswordConfig {
	return config.PasswordConfig{ArgonMemoryKB: 16384, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("closet-pass", testCost())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=16384,t=1,p=1$"))

	other, err := HashPassword("closet-pass", testCost())
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salt must differ per hash")

	ok, err := VerifyPassword("closet-pass", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("closet-pas", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = HashPassword("", testCost())
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestParsePHCRejectsMalformed(t *testing.T) {
	hash, err := HashPassword("closet-pass", testCost())
	require.NoError(t, err)
	fields := strings.Split(hash, "$")

	cases := map[string]string{
		"not phc":       "not-a-hash",
		"wrong variant": strings.Replace(hash, "argon2id", "argon2i", 1),
		"wrong version": strings.Replace(hash, "v=19", "v=16", 1),
		"zero lanes":    strings.Replace(hash, "p=1", "p=0", 1),
		"bad params":    strings.Replace(hash, fields[3], "m=x,t=1,p=1", 1),
		"bad salt":      strings.Replace(hash, fields[4], "***", 1),
		"missing key":   strings.TrimSuffix(hash, fields[5]),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := VerifyPassword("closet-pass", encoded)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestNeedsRehash(t *testing.T) {
	cfg := testCost()
	hash, err := HashPassword("closet-pass", cfg)
	require.NoError(t, err)
	assert.False(t, NeedsRehash(hash, cfg))

	stronger := cfg
	stronger.ArgonTime = 3
	assert.True(t, NeedsRehash(hash, stronger))

	// Salt length is not part of the cost.
	longerSalt := cfg
	longerSalt.ArgonSaltLen = 32
	assert.False(t, NeedsRehash(hash, longerSalt))

	assert.True(t, NeedsRehash("garbage", cfg))
}

func TestCostIsBounded(t *testing.T) {
	c := costFrom(config.PasswordConfig{ArgonMemoryKB: 1, ArgonTime: 99, ArgonParallelism: 0, ArgonSaltLen: 1000, ArgonKeyLen: 0})
	assert.Equal(t, uint32(8), c.memory)
	assert.Equal(t, uint32(10), c.passes)
	assert.Equal(t, uint8(1), c.lanes)
	assert.Equal(t, 64, c.saltLen)
	assert.Equal(t, 16, c.keyLen)
}
