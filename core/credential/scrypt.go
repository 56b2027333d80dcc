package credential

import (
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const scryptKeyLen = 64

// scryptHasher encodes `scrypt:<N>:<r>:<p>$<salt>$<hexdigest>`.
type scryptHasher struct {
	n, r, p int
	saltLen int
}

var _ Hasher = (*scryptHasher)(nil) // interface compliance check

func newScryptHasher(n, r, p, saltLen int) (*scryptHasher, error) {
	if n == 0 {
		n, r, p = 32768, 8, 1
	}
	if err := checkScryptParams(n, r, p); err != nil {
		return nil, err
	}
	return &scryptHasher{n: n, r: r, p: p, saltLen: saltLen}, nil
}

func (h *scryptHasher) Algorithm() Algorithm { return Scrypt }

func (h *scryptHasher) Make(pwd string) (string, error) {
	salt, err := genSalt(h.saltLen)
	if err != nil {
		return "", err
	}
	digest, err := scrypt.Key([]byte(pwd), []byte(salt), h.n, h.r, h.p, scryptKeyLen)
	if err != nil {
		return "", errors.Wrap(err, "deriving scrypt key")
	}
	method := string(Scrypt) + ":" + strconv.Itoa(h.n) + ":" + strconv.Itoa(h.r) + ":" + strconv.Itoa(h.p)
	return encode(method, salt, digest), nil
}

func (h *scryptHasher) Check(pwd string, hashed Hashed) (bool, error) {
	params := hashed.Params()
	if len(params) != 3 {
		return false, errors.Wrap(ErrMalformedHash, "scrypt parameters")
	}
	n, err := strconv.Atoi(params[0])
	if err != nil {
		return false, errors.Wrap(ErrMalformedHash, "scrypt N")
	}
	r, err := strconv.Atoi(params[1])
	if err != nil {
		return false, errors.Wrap(ErrMalformedHash, "scrypt r")
	}
	p, err := strconv.Atoi(params[2])
	if err != nil {
		return false, errors.Wrap(ErrMalformedHash, "scrypt p")
	}
	if err = checkScryptParams(n, r, p); err != nil {
		return false, errors.Wrap(ErrMalformedHash, err.Error())
	}

	digest, err := scrypt.Key([]byte(pwd), []byte(hashed.Salt), n, r, p, scryptKeyLen)
	if err != nil {
		return false, errors.Wrap(ErrMalformedHash, err.Error())
	}
	return digestEqual(digest, hashed.Digest), nil
}

// checkScryptParams rejects values scrypt.Key would panic on or that cost more than maxScryptMemory.
func checkScryptParams(n, r, p int) error {
	if n <= 1 || n&(n-1) != 0 {
		return errors.Errorf("scrypt N must be a power of 2 greater than 1, got %d", n)
	}
	if r <= 0 || p <= 0 || p > maxScryptP {
		return errors.Errorf("scrypt r and p out of range, got r=%d p=%d", r, p)
	}
	if n > maxScryptMemory/128/r {
		return errors.Errorf("scrypt N=%d r=%d needs more than %d bytes", n, r, maxScryptMemory)
	}
	return nil
}
