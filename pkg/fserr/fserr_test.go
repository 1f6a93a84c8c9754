package fserr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := New(CodeNotFound, "file %s", "/a")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrIsDir))
	assert.Equal(t, "file /a (NOT_FOUND)", err.Error())

	// 经过 fmt.Errorf 包装后依然可以匹配
	wrapped := fmt.Errorf("open: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(CodeIo, nil, "nothing"))

	err := Wrap(CodeIo, io.ErrUnexpectedEOF, "read chunk")
	assert.True(t, errors.Is(err, ErrIo))
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF), "cause must stay reachable")
	assert.Contains(t, err.Error(), "read chunk (IO)")

	// 已经带 Code 的错误不会被二次包装
	inner := New(CodeDecrypt, "bad tag")
	assert.Same(t, inner, Wrap(CodeIo, inner, "ignored"))
}

func TestCodeOf_PlainError(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, Code(""), CodeOf(nil))
}
