package vfs

import (
	"context"
	"runtime"
	"testing"
	"time"

	"vaultfs/pkg/engine"
	"vaultfs/pkg/vpath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVolume 只实现句柄相关的方法，其它方法调用会 panic
type fakeVolume struct {
	engine.Volume
	opened   engine.FileOptions
	released chan engine.Handle
	closed   chan struct{}
}

func newFakeVolume() *fakeVolume {
	return &fakeVolume{released: make(chan engine.Handle, 4), closed: make(chan struct{}, 4)}
}

func (v *fakeVolume) Info() engine.RepoInfo { return engine.RepoInfo{DedupChunk: true} }

func (v *fakeVolume) OpenFile(_ context.Context, _ vpath.Path, opts engine.FileOptions) (engine.Handle, error) {
	v.opened = opts
	return engine.Handle{Index: 3, Gen: 1}, nil
}

func (v *fakeVolume) Release(h engine.Handle) { v.released <- h }

func (v *fakeVolume) Close() error {
	v.closed <- struct{}{}
	return nil
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case v := <-ch:
			return v
		case <-deadline:
			t.Fatal("resource was not released")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestOpenOptions_ResolvesDefaults(t *testing.T) {
	fv := newFakeVolume()
	repo := newRepo(fv)
	defer repo.Close()

	f, err := NewOpenOptions().Append(true).Open(repo, Root())
	require.NoError(t, err)
	defer f.Close()

	assert.True(t, fv.opened.Read)
	assert.True(t, fv.opened.Write, "append implies write")
	assert.True(t, fv.opened.DedupChunk, "dedup follows the repo")
	assert.Equal(t, uint8(0), fv.opened.VersionLimit)

	_, err = NewOpenOptions().Read(false).Open(repo, Root())
	require.Error(t, err)

	_, err = NewOpenOptions().DedupChunk(false).VersionLimit(3).Open(repo, Root())
	require.NoError(t, err)
	assert.False(t, fv.opened.DedupChunk)
	assert.Equal(t, uint8(3), fv.opened.VersionLimit)
}

func TestFile_CloseReleasesOnce(t *testing.T) {
	fv := newFakeVolume()
	repo := newRepo(fv)

	f, err := NewOpenOptions().Open(repo, Root())
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())

	assert.Equal(t, engine.Handle{Index: 3, Gen: 1}, <-fv.released)
	assert.Len(t, fv.released, 0)

	repo.Close()
	repo.Close()
	<-fv.closed
	assert.Len(t, fv.closed, 0)
}

func TestFile_LeakedHandleIsReleasedByGC(t *testing.T) {
	fv := newFakeVolume()
	repo := newRepo(fv)
	defer repo.Close()

	func() {
		f, err := NewOpenOptions().Open(repo, Root())
		require.NoError(t, err)
		_ = f
	}()

	h := waitFor(t, fv.released)
	assert.Equal(t, uint32(3), h.Index)
	runtime.KeepAlive(repo)
}

func TestRepo_LeakedRepoIsClosedByGC(t *testing.T) {
	fv := newFakeVolume()
	func() {
		repo := newRepo(fv)
		_ = repo
	}()
	waitFor(t, fv.closed)
}
