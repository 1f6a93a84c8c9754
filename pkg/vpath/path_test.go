package vpath

import (
	"errors"
	"testing"

	"vaultfs/pkg/fserr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Invalid(t *testing.T) {
	for _, s := range []string{"", "aaa", "aaa/bbb", "./x"} {
		_, err := New(s)
		require.Error(t, err, "input %q", s)
		assert.True(t, errors.Is(err, fserr.ErrInvalidPath))
	}
}

func TestNew_Normalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"//", "/"},
		{"/aaa", "/aaa"},
		{"/aaa/bbb", "/aaa/bbb"},
		{"/aaa/", "/aaa"},
		{"//aaa//bbb/", "/aaa/bbb"},
		{"/aaa/./bbb", "/aaa/bbb"},
		{"/aaa/../bbb", "/aaa/../bbb"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MustNew(tt.in).String())
		})
	}
}

func TestNormalizedRoundTrip(t *testing.T) {
	for _, s := range []string{"/", "/a", "/a/b.c/d", "/x y/z"} {
		assert.Equal(t, s, MustNew(s).String())
	}
}

func TestRootAndEquality(t *testing.T) {
	assert.Equal(t, "/", Root().String())
	assert.True(t, Root().IsRoot())
	assert.False(t, MustNew("/aaa").IsRoot())
	assert.True(t, MustNew("/aaa").Equal(MustNew("/aaa/")))
	assert.False(t, MustNew("/aaa").Equal(MustNew("/aaa/bbb")))

	var zero Path
	assert.True(t, zero.IsZero())
	assert.False(t, Root().IsZero())
}

func TestParentAndFileName(t *testing.T) {
	assert.Equal(t, "/", Root().Parent().String())
	assert.Equal(t, "/", MustNew("/aaa").Parent().String())
	assert.Equal(t, "/aaa", MustNew("/aaa/bbb").Parent().String())

	assert.Equal(t, "", Root().FileName())
	assert.Equal(t, "aaa", MustNew("/aaa").FileName())
	assert.Equal(t, "bbb", MustNew("/aaa/bbb").FileName())
}

func TestStripPrefix(t *testing.T) {
	root := Root()
	p := MustNew("/aaa/bbb/ccc")

	rest, ok := root.StripPrefix("/")
	assert.True(t, ok)
	assert.Equal(t, "", rest)

	rest, ok = p.StripPrefix("/aaa")
	assert.True(t, ok)
	assert.Equal(t, "bbb/ccc", rest)

	rest, ok = p.StripPrefix("/aaa/bbb/")
	assert.True(t, ok)
	assert.Equal(t, "ccc", rest)

	rest, ok = p.StripPrefix("/aaa/bbb")
	assert.True(t, ok)
	assert.Equal(t, "ccc", rest)

	_, ok = p.StripPrefix("/aa")
	assert.False(t, ok, "only whole components match")
	_, ok = p.StripPrefix("aaa")
	assert.False(t, ok)
}

func TestStartsAndEndsWith(t *testing.T) {
	root := Root()
	p := MustNew("/aaa/bbb/ccc")

	assert.True(t, root.StartsWith("/"))
	assert.False(t, root.StartsWith("/xxx"))
	assert.True(t, root.StartsWith(""))
	assert.True(t, p.StartsWith("/aaa"))
	assert.True(t, p.StartsWith("/aaa/bbb"))
	assert.True(t, p.StartsWith("/aaa/bbb/ccc"))
	assert.False(t, p.StartsWith("/aa"))
	assert.False(t, p.StartsWith("/xxx/yyy"))
	assert.True(t, p.StartsWith(""))

	assert.True(t, root.EndsWith(""))
	assert.False(t, root.EndsWith("xxx"))
	assert.True(t, p.EndsWith("ccc"))
	assert.True(t, p.EndsWith("bbb/ccc"))
	assert.True(t, p.EndsWith("aaa/bbb/ccc"))
	assert.True(t, p.EndsWith("/aaa/bbb/ccc"))
	assert.False(t, p.EndsWith("cc"))
	assert.False(t, p.EndsWith("bbb/yyy"))
	assert.False(t, p.EndsWith("/aaa"))
}

func TestFileStemAndExtension(t *testing.T) {
	tests := []struct {
		path, stem, ext string
	}{
		{"/", "", ""},
		{"/aaa/bbb/ccc", "ccc", ""},
		{"/aaa/bbb/ddd.txt", "ddd", "txt"},
		{"/aaa/bbb/eee.fff.ext", "eee.fff", "ext"},
		{"/aaa/.bashrc", ".bashrc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p := MustNew(tt.path)
			assert.Equal(t, tt.stem, p.FileStem())
			assert.Equal(t, tt.ext, p.Extension())
		})
	}
}

func TestJoin_IsPureAndRelative(t *testing.T) {
	root := Root()
	p := MustNew("/aaa/bbb/ccc")

	assert.Equal(t, "/", root.Join("").String())
	assert.Equal(t, "/xxx", root.Join("xxx").String())
	assert.Equal(t, "/xxx/yyy", root.Join("xxx/yyy").String())
	assert.Equal(t, "/zzz", root.Join("/zzz/").String())
	assert.Equal(t, "/aaa/bbb/ccc/xxx", p.Join("xxx").String())
	assert.Equal(t, "/aaa/bbb/ccc/xxx/yyy", p.Join("xxx/yyy").String())

	// 绝对路径参数也只是追加
	assert.Equal(t, "/aaa/bbb/ccc/zzz", p.Join("/zzz").String())

	// receiver 不变
	assert.Equal(t, "/aaa/bbb/ccc", p.String())
	assert.Equal(t, "/", root.String())
}

func TestPushAndPop(t *testing.T) {
	p := Root()
	p2 := MustNew("/aaa/bbb/ccc")

	p.Push("")
	assert.Equal(t, "/", p.String())
	p.Push("xxx")
	assert.Equal(t, "/xxx", p.String())
	p.Push("yyy")
	assert.Equal(t, "/xxx/yyy", p.String())

	p2.Push("xxx")
	assert.Equal(t, "/aaa/bbb/ccc/xxx", p2.String())

	// 绝对路径替换
	p2.Push("/replaced/path")
	assert.Equal(t, "/replaced/path", p2.String())
	p2.Push("/aaa/bbb/ccc/xxx")

	assert.True(t, p.Pop())
	assert.Equal(t, "/xxx", p.String())
	assert.True(t, p.Pop())
	assert.Equal(t, "/", p.String())
	assert.False(t, p.Pop())
	assert.Equal(t, "/", p.String())

	for _, want := range []string{"/aaa/bbb/ccc", "/aaa/bbb", "/aaa", "/"} {
		assert.True(t, p2.Pop())
		assert.Equal(t, want, p2.String())
	}
	assert.False(t, p2.Pop())
}

func TestSetFileName(t *testing.T) {
	p := Root()
	p.SetFileName("xxx")
	assert.Equal(t, "/xxx", p.String())
	p.SetFileName("yyy.txt")
	assert.Equal(t, "/yyy.txt", p.String())

	for _, s := range []string{"/aaa/bbb/ccc", "/aaa/bbb/ddd.txt", "/aaa/bbb/eee.fff.ext"} {
		q := MustNew(s)
		q.SetFileName("xxx")
		assert.Equal(t, "/aaa/bbb/xxx", q.String())
		q.SetFileName("yyy.txt")
		assert.Equal(t, "/aaa/bbb/yyy.txt", q.String())
	}
}

func TestSetExtension(t *testing.T) {
	p := Root()
	p.SetExtension("ext")
	assert.Equal(t, "/", p.String())

	p2 := MustNew("/aaa/bbb/ccc")
	p2.SetExtension("ext")
	assert.Equal(t, "/aaa/bbb/ccc.ext", p2.String())

	p3 := MustNew("/aaa/bbb/ddd.txt")
	p3.SetExtension("ext")
	assert.Equal(t, "/aaa/bbb/ddd.ext", p3.String())
	p3.SetExtension("")
	assert.Equal(t, "/aaa/bbb/ddd", p3.String())

	p4 := MustNew("/aaa/bbb/eee.fff.ext")
	p4.SetExtension("ext")
	assert.Equal(t, "/aaa/bbb/eee.fff.ext", p4.String())
	p4.SetExtension("ext2")
	assert.Equal(t, "/aaa/bbb/eee.fff.ext2", p4.String())
}

func TestComponents(t *testing.T) {
	assert.Equal(t, []string{"/"}, Root().Components())
	assert.Equal(t, []string{"/", "aaa", "bbb", "ccc"}, MustNew("/aaa/bbb/ccc").Components())
	assert.Equal(t, []string{"/", "aaa", "bbb", "eee.fff.ext"}, MustNew("/aaa/bbb/eee.fff.ext").Components())
}
