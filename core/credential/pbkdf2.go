package credential

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const pbkdf2DefaultIterations = 600000

var pbkdf2Hashes = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// pbkdf2Hasher encodes `pbkdf2:<hash>:<iterations>$<salt>$<hexdigest>`.
type pbkdf2Hasher struct {
	hashName   string
	iterations int
	saltLen    int
}

var _ Hasher = (*pbkdf2Hasher)(nil) // interface compliance check

func newPBKDF2Hasher(hashName string, iterations, saltLen int) (*pbkdf2Hasher, error) {
	if hashName == "" {
		hashName = "sha256"
	}
	if _, ok := pbkdf2Hashes[hashName]; !ok {
		return nil, errors.Errorf("unknown pbkdf2 hash %q", hashName)
	}
	if iterations <= 0 {
		iterations = pbkdf2DefaultIterations
	}
	if iterations > maxPBKDF2Iterations {
		return nil, errors.Errorf("pbkdf2 iterations %d above %d", iterations, maxPBKDF2Iterations)
	}
	return &pbkdf2Hasher{hashName: hashName, iterations: iterations, saltLen: saltLen}, nil
}

func (h *pbkdf2Hasher) Algorithm() Algorithm { return PBKDF2 }

func (h *pbkdf2Hasher) Make(pwd string) (string, error) {
	salt, err := genSalt(h.saltLen)
	if err != nil {
		return "", err
	}
	method := string(PBKDF2) + ":" + h.hashName + ":" + strconv.Itoa(h.iterations)
	return encode(method, salt, h.derive(pwd, salt, h.hashName, h.iterations)), nil
}

func (h *pbkdf2Hasher) Check(pwd string, hashed Hashed) (bool, error) {
	// `pbkdf2:<hash>` and `pbkdf2:<hash>:<iterations>`
	iterations := pbkdf2DefaultIterations
	params := hashed.Params()
	switch len(params) {
	case 2:
		n, err := strconv.Atoi(params[1])
		if err != nil || n <= 0 || n > maxPBKDF2Iterations {
			return false, errors.Wrap(ErrMalformedHash, "pbkdf2 iterations")
		}
		iterations = n
	case 1:
	default:
		return false, errors.Wrap(ErrMalformedHash, "pbkdf2 parameters")
	}
	hashName := params[0]
	if _, ok := pbkdf2Hashes[hashName]; !ok {
		return false, errors.Wrapf(ErrMalformedHash, "pbkdf2 hash %q", hashName)
	}
	return digestEqual(h.derive(pwd, hashed.Salt, hashName, iterations), hashed.Digest), nil
}

func (h *pbkdf2Hasher) derive(pwd, salt, hashName string, iterations int) []byte {
	newHash := pbkdf2Hashes[hashName]
	return pbkdf2.Key([]byte(pwd), []byte(salt), iterations, newHash().Size(), newHash)
}
