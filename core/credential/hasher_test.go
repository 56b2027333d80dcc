package credential

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap parameters; production defaults take hundreds of milliseconds per hash
func testOptions(alg Algorithm) Options {
	return Options{
		Algorithm:        alg,
		SaltLength:       16,
		PBKDF2Hash:       "sha256",
		PBKDF2Iterations: 1000,
		ScryptN:          16,
		ScryptR:          8,
		ScryptP:          1,
		Argon2Variant:    "id",
		Argon2Memory:     64,
		Argon2Time:       1,
		Argon2Threads:    1,
	}
}

func testHashers(t *testing.T, alg Algorithm) *Hashers {
	t.Helper()
	hs, err := NewHashers(testOptions(alg))
	require.NoError(t, err)
	return hs
}

func TestNewHashers(t *testing.T) {
	hs, err := NewHashers(Options{})
	require.NoError(t, err)
	assert.Equal(t, Scrypt, hs.Default())

	hs, err = NewHashers(DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Scrypt, hs.Default())

	opts := testOptions("bcrypt")
	_, err = NewHashers(opts)
	assert.Equal(t, ErrUnsupportedAlgorithm, errors.Cause(err))

	opts = testOptions(PBKDF2)
	opts.PBKDF2Hash = "md5"
	_, err = NewHashers(opts)
	assert.Error(t, err)

	opts = testOptions(Scrypt)
	opts.ScryptN = 100
	_, err = NewHashers(opts)
	assert.Error(t, err)

	opts = testOptions(Argon2)
	opts.Argon2Variant = "d"
	_, err = NewHashers(opts)
	assert.Error(t, err)
}

func TestHashers_MakeCheck(t *testing.T) {
	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			hs := testHashers(t, alg)

			encoded, err := hs.Make("secret123")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(encoded, string(alg)+":"), encoded)

			h, ok := Parse(encoded).(Hashed)
			require.True(t, ok, "%q should parse as hashed", encoded)
			assert.Equal(t, alg, h.Algorithm)
			assert.Len(t, h.Salt, 16)

			match, err := hs.Check("secret123", h)
			require.NoError(t, err)
			assert.True(t, match)

			match, err = hs.Check("secret124", h)
			require.NoError(t, err)
			assert.False(t, match)

			match, err = hs.Check(encoded, h)
			require.NoError(t, err)
			assert.False(t, match, "the hash text itself must not verify")

			again, err := hs.Make("secret123")
			require.NoError(t, err)
			assert.NotEqual(t, encoded, again, "salts must differ")
		})
	}
}

func TestHashers_CheckForeignHashes(t *testing.T) {
	// generated by python's hashlib, the format werkzeug stores
	tests := []struct {
		name    string
		encoded string
	}{
		{
			name:    "pbkdf2 sha256",
			encoded: "pbkdf2:sha256:1000$abcdefgh$864b98d9e0043ee90fba5175b8e63efe05668667efcb2ab8d2975526b5adacb6",
		},
		{
			name:    "pbkdf2 sha1",
			encoded: "pbkdf2:sha1:1000$abcdefgh$6c5c9d8574d88d7a111690796682c15d8a35a7f2",
		},
		{
			name: "scrypt",
			encoded: "scrypt:16:8:1$saltsalt$3be0581b92c469cc7b21bc85194af1bded9beb97d0165d177e4bb73af6863a8d" +
				"15a04c8b5f39ba32c63d27a95427ce879555353045ee59136d1249e20ee76ae8",
		},
	}
	hs := testHashers(t, Argon2) // the default does not matter for checks
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, ok := Parse(tt.encoded).(Hashed)
			require.True(t, ok)

			match, err := hs.Check("secret123", h)
			require.NoError(t, err)
			assert.True(t, match)

			match, err = hs.Check("Secret123", h)
			require.NoError(t, err)
			assert.False(t, match)
		})
	}
}

func TestHashers_CheckMalformed(t *testing.T) {
	hs := testHashers(t, Scrypt)
	tests := []string{
		"scrypt:garbage",
		"scrypt:16:8$salt$00",
		"scrypt:x:8:1$salt$00",
		"scrypt:15:8:1$salt$00",
		"pbkdf2:md5:1000$salt$00",
		"pbkdf2:sha256:-1$salt$00",
		"pbkdf2:sha256:1:2$salt$00",
		"argon2:id$salt$00",
		"argon2:d:8:1:1$salt$00",
		"argon2:id:0:1:1$salt$00",
		"argon2:id:8:1:256$salt$00",
		"pbkdf2:sha256:1000$$",
		"pbkdf2:sha256:2000000000$salt$abcd",
		"scrypt:16384:8:0$salt$abcd",
		"scrypt:16384:0:1$salt$abcd",
		"scrypt:16384:-8:1$salt$abcd",
		"scrypt:16384:8:17$salt$abcd",
		"scrypt:1073741824:8:1$salt$abcd",
		"scrypt:1048576:16:1$salt$abcd",
		"argon2:id:4294967295:1:1$salt$abcd",
		"argon2:id:1048577:1:1$salt$abcd",
		"argon2:i:64:11:1$salt$abcd",
		"argon2:id:64:1:0$salt$abcd",
	}
	for _, encoded := range tests {
		t.Run(encoded, func(t *testing.T) {
			h, ok := Parse(encoded).(Hashed)
			require.True(t, ok)

			match, err := hs.Check("secret123", h)
			assert.False(t, match)
			assert.Equal(t, ErrMalformedHash, errors.Cause(err))
		})
	}
}

func TestHashers_CheckUnknownAlgorithm(t *testing.T) {
	hs := testHashers(t, Scrypt)
	match, err := hs.Check("x", Hashed{Algorithm: "bcrypt", Method: "bcrypt", Digest: "00"})
	assert.False(t, match)
	assert.Equal(t, ErrUnsupportedAlgorithm, errors.Cause(err))
}

func TestNewHashers_Limits(t *testing.T) {
	tests := []struct {
		name   string
		modify func(o *Options)
	}{
		{"pbkdf2 iterations", func(o *Options) { o.PBKDF2Iterations = maxPBKDF2Iterations + 1 }},
		{"scrypt p", func(o *Options) { o.ScryptP = maxScryptP + 1 }},
		{"scrypt memory", func(o *Options) { o.ScryptN, o.ScryptR = 1<<20, 16 }},
		{"argon2 memory", func(o *Options) { o.Argon2Memory = maxArgon2Memory + 1 }},
		{"argon2 time", func(o *Options) { o.Argon2Time = maxArgon2Time + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions(Scrypt)
			tt.modify(&opts)
			_, err := NewHashers(opts)
			assert.Error(t, err)
		})
	}

	_, err := NewHashers(DefaultOptions())
	assert.NoError(t, err, "defaults are within limits")
}

func TestHashers_CheckMissingParams(t *testing.T) {
	hs := testHashers(t, Scrypt)
	for _, alg := range Algorithms {
		t.Run(string(alg), func(t *testing.T) {
			match, err := hs.Check("secret123", Hashed{Algorithm: alg, Method: string(alg), Salt: "salt", Digest: "00"})
			assert.False(t, match)
			assert.Equal(t, ErrMalformedHash, errors.Cause(err))
		})
	}

	_, ok := Parse("pbkdf2$salt$00").(Legacy)
	assert.True(t, ok, "a tag without its colon is not a hash")
}
