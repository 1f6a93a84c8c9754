package engine

import (
	"testing"

	"vaultfs/pkg/fserr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionString(t *testing.T) {
	assert.Equal(t, "VaultFS v0.1.0", VersionString())
}

func TestParseCostAndCipher(t *testing.T) {
	c, err := ParseCost("Moderate")
	require.NoError(t, err)
	assert.Equal(t, CostModerate, c)
	assert.Equal(t, "moderate", c.String())

	_, err = ParseCost("extreme")
	assert.ErrorIs(t, err, fserr.ErrInvalidCost)

	ci, err := ParseCipher("xchacha")
	require.NoError(t, err)
	assert.Equal(t, CipherXChaCha, ci)

	_, err = ParseCipher("rot13")
	assert.ErrorIs(t, err, fserr.ErrInvalidCipher)
}

func TestFileOptionsNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   FileOptions
		want FileOptions
	}{
		{"append implies write", FileOptions{Append: true}, FileOptions{Append: true, Write: true}},
		{"truncate implies write", FileOptions{Truncate: true}, FileOptions{Truncate: true, Write: true}},
		{"create implies write", FileOptions{Create: true}, FileOptions{Create: true, Write: true}},
		{"create new implies create", FileOptions{CreateNew: true}, FileOptions{CreateNew: true, Create: true, Write: true}},
		{"read only untouched", FileOptions{Read: true}, FileOptions{Read: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.in.Normalize())
		})
	}
}

func TestHandleZero(t *testing.T) {
	assert.True(t, Handle{}.IsZero())
	assert.False(t, Handle{Index: 0, Gen: 1}.IsZero())
}
