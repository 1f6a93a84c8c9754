package compress

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack_Compressible(t *testing.T) {
	data := bytes.Repeat([]byte("vaultfs "), 1024)

	packed := Pack(data, true)
	assert.Equal(t, byte(TagZstd), packed[0])
	assert.Less(t, len(packed), len(data))

	got, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPack_Disabled(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 100)
	packed := Pack(data, false)
	assert.Equal(t, byte(TagNone), packed[0])
	assert.Len(t, packed, len(data)+1)

	got, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPack_IncompressibleFallsBackToRaw(t *testing.T) {
	data := make([]byte, 4096)
	_, _ = rand.Read(data)

	packed := Pack(data, true)
	assert.Equal(t, byte(TagNone), packed[0])

	got, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPack_Empty(t *testing.T) {
	got, err := Unpack(Pack(nil, true))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnpack_Corrupt(t *testing.T) {
	_, err := Unpack(nil)
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = Unpack([]byte{9, 1, 2})
	assert.True(t, errors.Is(err, ErrCorrupt))

	_, err = Unpack([]byte{byte(TagZstd), 1, 2, 3})
	assert.Error(t, err)
}
