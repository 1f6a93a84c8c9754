package storage

import (
	"errors"
	"testing"

	"vaultfs/pkg/fserr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation_Invalid(t *testing.T) {
	bad := []string{
		"",
		"wrong uri",
		"wrong storage://",
		"unknown://abc",
		"mem://",
		"file://",
		"zbox://",
		"zbox://foo@",
		"zbox://@bar",
		"zbox://foo@bar?cache_type=file",
		"mem://foo?bar=1",
	}
	for _, uri := range bad {
		_, err := ParseLocation(uri)
		require.Error(t, err, "uri %q", uri)
		assert.True(t, errors.Is(err, fserr.ErrInvalidUri), "uri %q: %v", uri, err)
	}
}

func TestParseLocation_Valid(t *testing.T) {
	loc, err := ParseLocation("mem://foo")
	require.NoError(t, err)
	assert.Equal(t, SchemeMem, loc.Scheme)
	assert.Equal(t, "foo", loc.Ident)
	assert.Equal(t, "mem://foo", loc.Canonical())

	loc, err = ParseLocation("file:///tmp/repo?cache=redis://localhost:6379/0")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/repo", loc.Ident)
	assert.Equal(t, "redis://localhost:6379/0", loc.Params.Get("cache"))
	assert.Equal(t, "file:///tmp/repo", loc.Canonical())

	loc, err = ParseLocation("zbox://access@bucket?region=eu-west-1&endpoint=http://localhost:9000")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", loc.Params.Get("region"))

	loc, err = ParseLocation("postgres://user:pw@localhost:5432/db?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, SchemePostgres, loc.Scheme)
}
