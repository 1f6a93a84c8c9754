package volume

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/vpath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPwd = "correct horse battery staple"

// testName 把测试名变成合法的 mem:// 标识
func testName(t *testing.T) string {
	return strings.ReplaceAll(t.Name(), "/", "_")
}

func testURI(t *testing.T) string {
	return "mem://" + testName(t)
}

// mustCreate 在测试专用的内存位置上新建仓库，测试结束后销毁
func mustCreate(t *testing.T, cfg engine.Config) engine.Volume {
	t.Helper()
	uri := testURI(t)
	cfg.Create = true
	vol, err := New().Open(context.Background(), uri, testPwd, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		vol.Close()
		New().Destroy(context.Background(), uri)
	})
	return vol
}

func p(s string) vpath.Path { return vpath.MustNew(s) }

func mustOpenFile(t *testing.T, vol engine.Volume, path string, opts engine.FileOptions) engine.Handle {
	t.Helper()
	h, err := vol.OpenFile(context.Background(), p(path), opts)
	require.NoError(t, err)
	return h
}

// mustWriteFile 创建 (或截断) 文件并把 data 提交为新版本
func mustWriteFile(t *testing.T, vol engine.Volume, path string, data string) {
	t.Helper()
	ctx := context.Background()
	h := mustOpenFile(t, vol, path, engine.FileOptions{Read: true, Create: true, Truncate: true})
	defer vol.Release(h)
	_, err := vol.Write(ctx, h, []byte(data))
	require.NoError(t, err)
	require.NoError(t, vol.Finish(ctx, h))
}

// mustReadHandle 从游标处读到末尾
func mustReadHandle(t *testing.T, vol engine.Volume, h engine.Handle) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := vol.Read(context.Background(), h, buf)
		sb.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			return sb.String()
		}
		require.NoError(t, err)
	}
}

func mustReadFile(t *testing.T, vol engine.Volume, path string) string {
	t.Helper()
	h := mustOpenFile(t, vol, path, engine.FileOptions{Read: true})
	defer vol.Release(h)
	return mustReadHandle(t, vol, h)
}

func assertCode(t *testing.T, err error, code fserr.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, fserr.CodeOf(err), "error: %v", err)
}
