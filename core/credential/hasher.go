package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"math/big"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolportal/core"
)

const saltChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Upper bounds on hash parameters. A stored hash beyond them is malformed and is never computed.
const (
	maxPBKDF2Iterations = 10000000
	maxScryptMemory     = 1 << 30 // bytes, 128*N*r
	maxScryptP          = 16
	maxArgon2Memory     = 1 << 20 // KiB
	maxArgon2Time       = 10
)

var (
	// errors
	ErrMalformedHash        = errors.New("malformed password hash")
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")
)

// Hasher is a password hashing driver for one Algorithm.
type Hasher interface {
	Algorithm() Algorithm
	// Make hashes pwd with a fresh salt and returns the encoded credential.
	Make(pwd string) (string, error)
	// Check reports whether pwd matches h. It returns an error when h cannot be decoded.
	Check(pwd string, h Hashed) (bool, error)
}

// Options configures the drivers and the default Algorithm.
type Options struct {
	Algorithm        Algorithm
	SaltLength       int
	PBKDF2Hash       string
	PBKDF2Iterations int
	ScryptN          int
	ScryptR          int
	ScryptP          int
	Argon2Variant    string
	Argon2Memory     uint32
	Argon2Time       uint32
	Argon2Threads    uint8
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Algorithm:        Scrypt,
		SaltLength:       16,
		PBKDF2Hash:       "sha256",
		PBKDF2Iterations: 600000,
		ScryptN:          32768,
		ScryptR:          8,
		ScryptP:          1,
		Argon2Variant:    "id",
		Argon2Memory:     64 * 1024,
		Argon2Time:       3,
		Argon2Threads:    2,
	}
}

// OptionsFromConfig maps the `hashing.*` settings.
func OptionsFromConfig(conf *core.Config) Options {
	h := conf.Hashing
	return Options{
		Algorithm:        Algorithm(h.Algorithm),
		SaltLength:       h.SaltLength,
		PBKDF2Hash:       h.PBKDF2Hash,
		PBKDF2Iterations: h.PBKDF2Iterations,
		ScryptN:          h.ScryptN,
		ScryptR:          h.ScryptR,
		ScryptP:          h.ScryptP,
		Argon2Variant:    h.Argon2Variant,
		Argon2Memory:     h.Argon2Memory,
		Argon2Time:       h.Argon2Time,
		Argon2Threads:    h.Argon2Threads,
	}
}

// Hashers is the registry of drivers, one per Algorithm.
// New credentials are always produced by the default driver.
type Hashers struct {
	def     Algorithm
	drivers map[Algorithm]Hasher
}

func NewHashers(opts Options) (*Hashers, error) {
	if opts.SaltLength <= 0 {
		opts.SaltLength = 16
	}
	pbkdf2Drv, err := newPBKDF2Hasher(opts.PBKDF2Hash, opts.PBKDF2Iterations, opts.SaltLength)
	if err != nil {
		return nil, errors.Wrap(err, "configuring pbkdf2")
	}
	scryptDrv, err := newScryptHasher(opts.ScryptN, opts.ScryptR, opts.ScryptP, opts.SaltLength)
	if err != nil {
		return nil, errors.Wrap(err, "configuring scrypt")
	}
	argon2Drv, err := newArgon2Hasher(opts.Argon2Variant, opts.Argon2Memory, opts.Argon2Time, opts.Argon2Threads, opts.SaltLength)
	if err != nil {
		return nil, errors.Wrap(err, "configuring argon2")
	}

	hs := &Hashers{
		def: opts.Algorithm,
		drivers: map[Algorithm]Hasher{
			PBKDF2: pbkdf2Drv,
			Scrypt: scryptDrv,
			Argon2: argon2Drv,
		},
	}
	if hs.def == "" {
		hs.def = Scrypt
	}
	if _, ok := hs.drivers[hs.def]; !ok {
		return nil, errors.Wrapf(ErrUnsupportedAlgorithm, "default algorithm %q", hs.def)
	}
	return hs, nil
}

func (hs *Hashers) Default() Algorithm {
	return hs.def
}

// Make hashes pwd with the default driver.
func (hs *Hashers) Make(pwd string) (string, error) {
	return hs.drivers[hs.def].Make(pwd)
}

// Check verifies pwd against h with the driver matching its tag.
func (hs *Hashers) Check(pwd string, h Hashed) (bool, error) {
	drv, ok := hs.drivers[h.Algorithm]
	if !ok {
		return false, errors.Wrapf(ErrUnsupportedAlgorithm, "%q", h.Algorithm)
	}
	if !h.Valid() {
		return false, ErrMalformedHash
	}
	return drv.Check(pwd, h)
}

func genSalt(length int) (string, error) {
	max := big.NewInt(int64(len(saltChars)))
	salt := make([]byte, length)
	for i := range salt {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", errors.Wrap(err, "generating salt")
		}
		salt[i] = saltChars[n.Int64()]
	}
	return string(salt), nil
}

func encode(method, salt string, digest []byte) string {
	return method + "$" + salt + "$" + hex.EncodeToString(digest)
}

// digestEqual compares a computed digest with the hex digest of a stored credential in constant time.
func digestEqual(computed []byte, hexDigest string) bool {
	return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(computed)), []byte(hexDigest)) == 1
}
