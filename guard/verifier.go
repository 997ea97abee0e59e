package guard

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/folio/internal/util"
)

const saltLen = 16

// ErrMalformedHash is returned when a configured secret hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Verifier checks candidate secrets against a stored argon2id hash. The
// derived key is kept in a memguard Enclave and only unsealed for the
// duration of a comparison.
type Verifier struct {
	params util.Argon2idParams
	salt   []byte
	key    *memguard.Enclave
}

// HashSecret hashes secret with the default argon2id parameters and returns
// the PHC string to place in configuration.
func HashSecret(secret string) (string, error) {
	return HashSecretWithParams(secret, util.DefaultArgon2idParams())
}

// HashSecretWithParams is HashSecret with explicit parameters.
func HashSecretWithParams(secret string, params util.Argon2idParams) (string, error) {
	if err := util.ValidateArgon2idParams(params); err != nil {
		return "", err
	}
	salt, err := util.RandomBytes(saltLen)
	if err != nil {
		return "", err
	}
	key, err := util.DeriveArgon2idKey(util.NormalizeSecret(secret), salt, params)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(key)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		19, params.MemoryKiB, params.Time, params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// ParseVerifier builds a Verifier from a PHC string produced by HashSecret.
func ParseVerifier(encoded string) (*Verifier, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != 19 {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrMalformedHash, parts[2])
	}
	var params util.Argon2idParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.MemoryKiB, &params.Time, &params.Parallelism); err != nil {
		return nil, fmt.Errorf("%w: parameters %q", ErrMalformedHash, parts[3])
	}
	params.KeyLen = 32
	if err := util.ValidateArgon2idParams(params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return nil, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) != int(params.KeyLen) {
		return nil, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return &Verifier{
		params: params,
		salt:   salt,
		key:    memguard.NewEnclave(key), // wipes key
	}, nil
}

// Verify reports whether candidate matches the stored hash.
func (v *Verifier) Verify(candidate string) (bool, error) {
	buf, err := v.key.Open()
	if err != nil {
		return false, fmt.Errorf("unsealing verifier key: %w", err)
	}
	defer buf.Destroy()
	return util.CompareArgon2idKey(util.NormalizeSecret(candidate), v.salt, v.params, buf.Bytes())
}
