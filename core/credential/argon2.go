package credential

import (
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
)

const argon2KeyLen = 32

// argon2Hasher encodes `argon2:<id|i>:<memoryKiB>:<time>:<threads>$<salt>$<hexdigest>`.
type argon2Hasher struct {
	variant string
	memory  uint32
	time    uint32
	threads uint8
	saltLen int
}

var _ Hasher = (*argon2Hasher)(nil) // interface compliance check

func newArgon2Hasher(variant string, memory, time uint32, threads uint8, saltLen int) (*argon2Hasher, error) {
	if variant == "" {
		variant = "id"
	}
	if variant != "id" && variant != "i" {
		return nil, errors.Errorf("unknown argon2 variant %q", variant)
	}
	if memory == 0 {
		memory = 64 * 1024
	}
	if time == 0 {
		time = 3
	}
	if threads == 0 {
		threads = 2
	}
	if memory > maxArgon2Memory || time > maxArgon2Time {
		return nil, errors.Errorf("argon2 memory=%dKiB time=%d above limits", memory, time)
	}
	return &argon2Hasher{variant: variant, memory: memory, time: time, threads: threads, saltLen: saltLen}, nil
}

func (h *argon2Hasher) Algorithm() Algorithm { return Argon2 }

func (h *argon2Hasher) Make(pwd string) (string, error) {
	salt, err := genSalt(h.saltLen)
	if err != nil {
		return "", err
	}
	method := string(Argon2) + ":" + h.variant + ":" +
		strconv.FormatUint(uint64(h.memory), 10) + ":" +
		strconv.FormatUint(uint64(h.time), 10) + ":" +
		strconv.FormatUint(uint64(h.threads), 10)
	return encode(method, salt, deriveArgon2(h.variant, pwd, salt, h.memory, h.time, h.threads)), nil
}

func (h *argon2Hasher) Check(pwd string, hashed Hashed) (bool, error) {
	params := hashed.Params()
	if len(params) != 4 {
		return false, errors.Wrap(ErrMalformedHash, "argon2 parameters")
	}
	variant := params[0]
	if variant != "id" && variant != "i" {
		return false, errors.Wrapf(ErrMalformedHash, "argon2 variant %q", variant)
	}
	memory, err := strconv.ParseUint(params[1], 10, 32)
	if err != nil || memory == 0 || memory > maxArgon2Memory {
		return false, errors.Wrap(ErrMalformedHash, "argon2 memory")
	}
	time, err := strconv.ParseUint(params[2], 10, 32)
	if err != nil || time == 0 || time > maxArgon2Time {
		return false, errors.Wrap(ErrMalformedHash, "argon2 time")
	}
	threads, err := strconv.ParseUint(params[3], 10, 8)
	if err != nil || threads == 0 {
		return false, errors.Wrap(ErrMalformedHash, "argon2 threads")
	}
	digest := deriveArgon2(variant, pwd, hashed.Salt, uint32(memory), uint32(time), uint8(threads))
	return digestEqual(digest, hashed.Digest), nil
}

func deriveArgon2(variant, pwd, salt string, memory, time uint32, threads uint8) []byte {
	if variant == "i" {
		return argon2.Key([]byte(pwd), []byte(salt), time, memory, threads, argon2KeyLen)
	}
	return argon2.IDKey([]byte(pwd), []byte(salt), time, memory, threads, argon2KeyLen)
}
