package disk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hash("hello")
const helloKey = types.StoreKey("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")

func mustRead(t *testing.T, s storage.Store, key types.StoreKey) []byte {
	t.Helper()
	data, err := storage.ReadAll(context.Background(), s, key)
	require.NoError(t, err)
	return data
}

func TestDiskAdapter(t *testing.T) {
	// 1. 创建临时测试目录
	tmpDir := t.TempDir()
	store, err := NewAdapter(tmpDir)
	require.NoError(t, err)

	ctx := context.Background()

	// 2. 测试 Put
	require.NoError(t, store.Put(ctx, helloKey, []byte("hello world")))

	// 路径应该是 tmpDir/objects/2c/f24dba...
	expectedPath := filepath.Join(tmpDir, "objects", "2c", string(helloKey[2:]))
	_, err = os.Stat(expectedPath)
	assert.NoError(t, err, "文件应该存在于 Sharding 目录中")

	// 3. 测试 Has
	exists, err := store.Has(ctx, helloKey)
	assert.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.Has(ctx, "ffffffff")
	assert.NoError(t, err)
	assert.False(t, exists)

	// 4. 测试 Get
	assert.Equal(t, []byte("hello world"), mustRead(t, store, helloKey))

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	// 5. 临时文件不应残留
	entries, err := os.ReadDir(filepath.Join(tmpDir, "objects", "2c"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDiskAdapter_OverwriteAndDelete(t *testing.T) {
	store, err := NewAdapter(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	// 非哈希 Key 放在根目录，可以被覆盖
	require.NoError(t, store.Put(ctx, "HEAD", []byte("v1")))
	require.NoError(t, store.Put(ctx, "HEAD", []byte("v2")))
	assert.Equal(t, []byte("v2"), mustRead(t, store, "HEAD"))

	require.NoError(t, store.Delete(ctx, "HEAD"))
	require.NoError(t, store.Delete(ctx, "HEAD"), "deleting twice is fine")

	exists, err := store.Has(ctx, "HEAD")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDiskAdapter_Destroy(t *testing.T) {
	root := filepath.Join(t.TempDir(), "repo")
	store, err := NewAdapter(root)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), helloKey, []byte("x")))

	require.NoError(t, store.Destroy(context.Background()))
	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}

func TestMemoryAdapter_SharedByName(t *testing.T) {
	ctx := context.Background()
	name := strings.ReplaceAll(t.Name(), "/", "_")

	a := NewMemory(name)
	require.NoError(t, a.Put(ctx, helloKey, []byte("shared")))

	// 同名实例看到同样的数据
	b := NewMemory(name)
	assert.Equal(t, []byte("shared"), mustRead(t, b, helloKey))

	// 不同名字互相隔离
	other := NewMemory(name + "-other")
	exists, err := other.Has(ctx, helloKey)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, a.Destroy(ctx))
	c := NewMemory(name)
	exists, err = c.Has(ctx, helloKey)
	require.NoError(t, err)
	assert.False(t, exists, "destroy drops the named filesystem")

	rc, err := c.Get(ctx, helloKey)
	assert.Nil(t, rc)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
