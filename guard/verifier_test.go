package guard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	encoded, err := HashSecretWithParams("hunter2!", cheapParams)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	v, err := ParseVerifier(encoded)
	require.NoError(t, err)

	ok, err := v.Verify("hunter2!")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = v.Verify("hunter3!")
	require.NoError(t, err)
	assert.False(t, ok)

	// The key can be unsealed repeatedly.
	ok, err = v.Verify("hunter2!")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifier_SaltsDiffer(t *testing.T) {
	a, err := HashSecretWithParams("same", cheapParams)
	require.NoError(t, err)
	b, err := HashSecretWithParams("same", cheapParams)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifier_NormalizesInput(t *testing.T) {
	encoded, err := HashSecretWithParams("caf\u00e9", cheapParams)
	require.NoError(t, err)
	v, err := ParseVerifier(encoded)
	require.NoError(t, err)

	ok, err := v.Verify("cafe\u0301")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseVerifier_Malformed(t *testing.T) {
	valid, err := HashSecretWithParams("x", cheapParams)
	require.NoError(t, err)
	parts := strings.Split(valid, "$")

	cases := map[string]string{
		"empty":          "",
		"plain text":     "password",
		"wrong alg":      strings.Replace(valid, "argon2id", "argon2i", 1),
		"wrong version":  strings.Replace(valid, "v=19", "v=16", 1),
		"bad params":     strings.Join([]string{"", parts[1], parts[2], "m=x,t=1,p=1", parts[4], parts[5]}, "$"),
		"zero time":      strings.Join([]string{"", parts[1], parts[2], "m=1024,t=0,p=1", parts[4], parts[5]}, "$"),
		"bad salt":       strings.Join([]string{"", parts[1], parts[2], parts[3], "!!", parts[5]}, "$"),
		"short key":      strings.Join([]string{"", parts[1], parts[2], parts[3], parts[4], "AAAA"}, "$"),
		"missing fields": strings.Join(parts[:4], "$"),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseVerifier(encoded)
			assert.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}
