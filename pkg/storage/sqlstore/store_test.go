package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestStore 构建隔离的测试环境
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s := NewWithConn(db)
	require.NoError(t, s.migrate(context.Background()))
	return s
}

func mustPut(t *testing.T, s *Store, key types.StoreKey, data string) {
	t.Helper()
	require.NoError(t, s.Put(context.Background(), key, []byte(data)))
}

func TestStore_PutGetHas(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	key := types.StoreKey("2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824")
	mustPut(t, s, key, "hello")

	exists, err := s.Has(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := storage.ReadAll(ctx, s, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	exists, err = s.Has(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_OverwriteIsUpsert(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "HEAD", "v1")
	mustPut(t, s, "HEAD", "v2")

	data, err := storage.ReadAll(ctx, s, "HEAD")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), data)

	var count int64
	require.NoError(t, s.conn.Model(&Object{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "overwrite must not create a second row")
}

func TestStore_DeleteAndDestroy(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustPut(t, s, "a", "1")
	mustPut(t, s, "b", "2")

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"), "deleting a missing key is fine")

	exists, err := s.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Destroy(ctx))
	exists, err = s.Has(ctx, "b")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_ConcurrentPuts(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Put(context.Background(), types.StoreKey(fmt.Sprintf("k%d", i)), []byte("x")))
		}(i)
	}
	wg.Wait()

	var count int64
	require.NoError(t, s.conn.Model(&Object{}).Count(&count).Error)
	assert.Equal(t, int64(8), count)
}
