// Package credential verifies stored passwords and upgrades legacy plaintext credentials
// to salted hashes on their first successful use.
//
// A stored password is one of three variants:
//
//	Empty   ""                                   never valid
//	Legacy  "secret123"                          compared byte-for-byte
//	Hashed  "scrypt:32768:8:1$<salt>$<hexdigest>" checked by the matching Hasher
//
// Parse is the only place that looks at the raw string.
package credential

import "strings"

// Algorithm is the tag a hashed credential starts with.
type Algorithm string

const (
	PBKDF2 Algorithm = "pbkdf2"
	Scrypt Algorithm = "scrypt"
	Argon2 Algorithm = "argon2"
)

// Algorithms lists the recognised hash tags.
var Algorithms = []Algorithm{PBKDF2, Scrypt, Argon2}

// Credential is one of Empty, Legacy or Hashed.
type Credential interface {
	credential()
}

type (
	// Empty is a missing password. It never verifies and is never upgraded.
	Empty struct{}

	// Legacy is a plaintext-equivalent password.
	Legacy struct {
		Secret string
	}

	// Hashed is a tagged, salted digest in the `method$salt$digest` format.
	// Method is the tag followed by the algorithm parameters, eg. `pbkdf2:sha256:600000`.
	// Method, Salt and Digest are empty when Encoded does not split into three parts.
	Hashed struct {
		Algorithm Algorithm
		Method    string
		Salt      string
		Digest    string
		Encoded   string
	}
)

func (Empty) credential()  {}
func (Legacy) credential() {}
func (Hashed) credential() {}

// Params returns the algorithm parameters that follow the tag in Method.
func (h Hashed) Params() []string {
	params := strings.Split(h.Method, ":")
	return params[1:]
}

// Valid reports whether the encoded string had all three parts.
func (h Hashed) Valid() bool {
	return h.Method != "" && h.Digest != ""
}

// Parse classifies a stored password.
func Parse(stored string) Credential {
	if stored == "" {
		return Empty{}
	}
	for _, alg := range Algorithms {
		if strings.HasPrefix(stored, string(alg)+":") {
			return parseHashed(alg, stored)
		}
	}
	return Legacy{Secret: stored}
}

// IsHashed reports whether stored carries a recognised hash tag.
func IsHashed(stored string) bool {
	_, ok := Parse(stored).(Hashed)
	return ok
}

func parseHashed(alg Algorithm, stored string) Hashed {
	h := Hashed{Algorithm: alg, Encoded: stored}
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 {
		return h
	}
	h.Method, h.Salt, h.Digest = parts[0], parts[1], parts[2]
	return h
}
