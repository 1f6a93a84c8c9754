package vfs

import (
	"crypto/rand"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisAvailable(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// TestWorkflow_Backends 在每种本地后端上跑一遍完整流程：
// 写入 -> 关闭 -> 重新打开 -> 读回 -> 历史版本
func TestWorkflow_Backends(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"file":   "file://" + filepath.Join(dir, "file-repo"),
		"sqlite": "sqlite://" + filepath.Join(dir, "repo.db"),
	}
	if redisAvailable("localhost:6379") {
		cases["file+redis"] = "file://" + filepath.Join(dir, "cached-repo") + "?cache=redis://localhost:6379/0"
	} else {
		t.Log("redis not available, skipping cached backend")
	}

	// 1MB 随机数据，足够切成多个 chunk
	data := make([]byte, 1<<20)
	_, err := rand.Read(data)
	require.NoError(t, err)

	for name, uri := range cases {
		t.Run(name, func(t *testing.T) {
			t.Cleanup(func() { DestroyRepo(uri) })

			// 1. 新建仓库并写两个版本
			repo, err := NewRepoOpener().Create(true).VersionLimit(4).DedupChunk(true).Open(uri, testPwd)
			require.NoError(t, err)

			p := mustPath(t, "/data/blob.bin")
			require.NoError(t, repo.CreateDirAll(mustPath(t, "/data")))
			f, err := repo.CreateFile(p)
			require.NoError(t, err)
			require.NoError(t, f.WriteOnce(data))
			require.NoError(t, f.WriteOnce([]byte("tail")))
			require.NoError(t, f.Close())
			repo.Close()

			// 2. 重新打开，数据和历史都应该还在
			repo, err = NewRepoOpener().Open(uri, testPwd)
			require.NoError(t, err)
			defer repo.Close()

			f, err = repo.OpenFile(p)
			require.NoError(t, err)
			defer f.Close()

			// 游标跨版本延续，第二次写入接在后面
			want := append(append([]byte{}, data...), "tail"...)
			got := mustReadAll(t, f)
			assert.Equal(t, len(want), len(got))
			assert.True(t, string(want) == string(got), "content mismatch after reopen")

			history, err := f.History()
			require.NoError(t, err)
			require.Len(t, history, 3)
			assert.Equal(t, int64(0), history[0].ContentLen)

			vr, err := f.VersionReader(history[1].Num)
			require.NoError(t, err)
			defer vr.Close()
			assert.True(t, string(data) == string(mustReadAll(t, vr)), "old version must stay intact")
		})
	}
}
