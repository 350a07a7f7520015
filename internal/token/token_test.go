package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateFormat(t *testing.T) {
	tok, err := Generate()
	require.NoError(t, err)
	require.Len(t, tok, Length)
	require.Regexp(t, `^[A-Za-z0-9]+$`, tok)
}

func TestGenerateIsFreshPerCall(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		require.False(t, seen[tok], "token %q generated twice", tok)
		seen[tok] = true
	}
}
