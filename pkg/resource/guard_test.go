package resource

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"vaultfs/pkg/fserr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_CloseIsIdempotent(t *testing.T) {
	var released int32
	g := New("test", 42, func(v int) error {
		atomic.AddInt32(&released, 1)
		assert.Equal(t, 42, v)
		return nil
	})

	v, err := g.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	g.Close()
	g.Close()
	assert.Equal(t, int32(1), atomic.LoadInt32(&released))
	assert.True(t, g.IsClosed())

	_, err = g.Get()
	assert.True(t, errors.Is(err, fserr.ErrClosed))
}

func TestGuard_ReleaseErrorIsSwallowed(t *testing.T) {
	g := New("failing", "x", func(string) error { return errors.New("boom") })
	assert.NotPanics(t, g.Close)
	assert.True(t, g.IsClosed())
}

func TestGuard_ConcurrentClose(t *testing.T) {
	var released int32
	g := New("concurrent", struct{}{}, func(struct{}) error {
		atomic.AddInt32(&released, 1)
		return nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Close()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&released))
}

func TestGuard_CleanupSafetyNet(t *testing.T) {
	done := make(chan struct{}, 1)
	func() {
		g := New("leaked", 7, func(int) error {
			done <- struct{}{}
			return nil
		})
		_ = g
	}()

	// 没有 Close 的 Guard 被 GC 后必须自动释放
	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("cleanup did not release the leaked resource")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestGuard_CleanupAfterCloseDoesNothing(t *testing.T) {
	var released int32
	func() {
		g := New("closed", 1, func(int) error {
			atomic.AddInt32(&released, 1)
			return nil
		})
		g.Close()
	}()
	for range 3 {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&released))
}
