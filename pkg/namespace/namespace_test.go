package namespace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"

	"vaultfs/pkg/core"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/types"
	"vaultfs/pkg/vpath"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore 是一个内存对象存储
type memStore struct {
	mu      sync.Mutex
	objects map[types.Hash][]byte
	puts    int
}

func newMemStore() *memStore { return &memStore{objects: map[types.Hash][]byte{}} }

func (m *memStore) GetObject(ctx context.Context, id types.Hash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[id]
	if !ok {
		return nil, fserr.ErrNotFound
	}
	return data, nil
}

func (m *memStore) PutObject(ctx context.Context, obj core.Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.objects[obj.ID()] = obj.Bytes()
	return nil
}

func mockHash(input string) types.Hash {
	sum := sha256.Sum256([]byte(input))
	return types.Hash(hex.EncodeToString(sum[:]))
}

func fileWith(contents ...string) FileState {
	var s FileState
	for _, c := range contents {
		s, _ = s.Commit(core.VersionEntry{Len: int64(len(c)), Content: core.NewLink(mockHash(c))}, 255)
	}
	return s
}

func mustUpdate(t *testing.T, root *Node, dir string, fn func(e *Editor) error) *Node {
	t.Helper()
	newRoot, err := Update(root, vpath.MustNew(dir), 1, fn)
	require.NoError(t, err)
	return newRoot
}

func TestFileState_CommitEvictsFIFO(t *testing.T) {
	var s FileState
	var evicted []core.VersionEntry
	for i, c := range []string{"a", "b", "c"} {
		s, evicted = s.Commit(core.VersionEntry{Len: 1, Content: core.NewLink(mockHash(c))}, 2)
		if i < 2 {
			assert.Empty(t, evicted)
		}
	}
	require.Len(t, evicted, 1)
	assert.Equal(t, uint64(1), evicted[0].Num)

	assert.Equal(t, uint64(3), s.CurrVersion)
	require.Len(t, s.Versions, 2)
	assert.Equal(t, uint64(2), s.Versions[0].Num)
	assert.Equal(t, uint64(3), s.Versions[1].Num)

	_, ok := s.Find(1)
	assert.False(t, ok)
	v, ok := s.Find(3)
	assert.True(t, ok)
	assert.Equal(t, mockHash("c"), v.Content.Hash)
}

func TestUpdate_CopyOnWrite(t *testing.T) {
	root := NewDir(0)
	r1 := mustUpdate(t, root, "/", func(e *Editor) error {
		e.Put("a", NewDir(1))
		return nil
	})
	r2 := mustUpdate(t, r1, "/a", func(e *Editor) error {
		e.Put("f", NewFile(fileWith("x"), 1))
		return nil
	})

	// 旧的根不受影响
	assert.Equal(t, 0, root.Len())
	a1, err := Lookup(r1, vpath.MustNew("/a"))
	require.NoError(t, err)
	assert.Equal(t, 0, a1.Len())

	f, err := Lookup(r2, vpath.MustNew("/a/f"))
	require.NoError(t, err)
	assert.True(t, f.IsFile())

	_, err = Lookup(r2, vpath.MustNew("/a/f/g"))
	assert.Equal(t, fserr.CodeNotDir, fserr.CodeOf(err))
	_, err = Lookup(r2, vpath.MustNew("/nope"))
	assert.Equal(t, fserr.CodeNotFound, fserr.CodeOf(err))

	// fn 失败时不产生新根
	_, err = Update(r2, vpath.MustNew("/a"), 2, func(e *Editor) error { return fserr.ErrNotEmpty })
	assert.ErrorIs(t, err, fserr.ErrNotEmpty)
	_, err = Update(r2, vpath.MustNew("/a/f"), 2, func(e *Editor) error { return nil })
	assert.Equal(t, fserr.CodeNotDir, fserr.CodeOf(err))
}

func TestEditor_KeepsCreationOrder(t *testing.T) {
	root := mustUpdate(t, NewDir(0), "/", func(e *Editor) error {
		for _, n := range []string{"zeta", "alpha", "mid"} {
			e.Put(n, NewDir(1))
		}
		return nil
	})
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, root.Names())

	// 替换保持位置，删除后重新插入排到最后
	root = mustUpdate(t, root, "/", func(e *Editor) error {
		e.Put("alpha", NewFile(fileWith("1"), 2))
		_, ok := e.Remove("zeta")
		assert.True(t, ok)
		e.Put("zeta", NewDir(2))
		return nil
	})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, root.Names())
}

func TestBuildAndLoad(t *testing.T) {
	store := newMemStore()
	b := NewBuilder(store)
	ctx := context.Background()

	// root
	//  ├── b.txt
	//  └── sub
	//       └── a.txt
	root := mustUpdate(t, NewDir(0), "/", func(e *Editor) error {
		e.Put("b.txt", NewFile(fileWith("", "hello"), 1))
		e.Put("sub", NewDir(1))
		return nil
	})
	root = mustUpdate(t, root, "/sub", func(e *Editor) error {
		e.Put("a.txt", NewFile(fileWith("x"), 1))
		return nil
	})

	rootID, err := b.Build(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, rootID, root.ID())
	assert.Equal(t, 4, store.puts, "2 trees + 2 inodes")

	loaded, err := Load(ctx, store, rootID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.txt", "sub"}, loaded.Names())

	f, err := Lookup(loaded, vpath.MustNew("/b.txt"))
	require.NoError(t, err)
	st := f.File()
	assert.Equal(t, uint64(2), st.CurrVersion)
	latest, _ := st.Latest()
	assert.Equal(t, int64(5), latest.Len)

	// 只修改一个文件：只重写它和它的祖先
	store.puts = 0
	updated := mustUpdate(t, loaded, "/sub", func(e *Editor) error {
		old, _ := e.Get("a.txt")
		st := old.File()
		st, _ = st.Commit(core.VersionEntry{Len: 2, Content: core.NewLink(mockHash("xy"))}, 0)
		e.Put("a.txt", old.WithFile(st, 2))
		return nil
	})
	newID, err := b.Build(ctx, updated)
	require.NoError(t, err)
	assert.NotEqual(t, rootID, newID)
	assert.Equal(t, 3, store.puts, "inode + sub + root")
}

func TestWalk(t *testing.T) {
	root := mustUpdate(t, NewDir(0), "/", func(e *Editor) error {
		e.Put("d", NewDir(1))
		e.Put("f", NewFile(fileWith("1"), 1))
		return nil
	})
	root = mustUpdate(t, root, "/d", func(e *Editor) error {
		e.Put("g", NewFile(fileWith("2"), 1))
		return nil
	})

	var seen []string
	require.NoError(t, Walk(root, func(rel []string, n *Node) error {
		seen = append(seen, vpath.Root().Join(joinRel(rel)).String())
		return nil
	}))
	assert.Equal(t, []string{"/", "/d", "/d/g", "/f"}, seen)
}

func joinRel(rel []string) string {
	out := ""
	for i, s := range rel {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}
