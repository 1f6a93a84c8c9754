package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
)

// Adapter 实现了 storage.Store 接口
// 底层是 billy.Filesystem：file:// 用 osfs，mem:// 用 memfs
type Adapter struct {
	fs      billy.Filesystem
	destroy func() error
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{
		fs:      osfs.New(root),
		destroy: func() error { return os.RemoveAll(root) },
	}, nil
}

// 进程内的 memfs 注册表：同名的 mem:// 仓库在进程生命周期内共享数据
var (
	memMu  sync.Mutex
	memFSs = map[string]billy.Filesystem{}
)

// NewMemory 返回名为 name 的内存存储
func NewMemory(name string) *Adapter {
	memMu.Lock()
	defer memMu.Unlock()

	fs, ok := memFSs[name]
	if !ok {
		fs = memfs.New()
		memFSs[name] = fs
	}
	return &Adapter{
		fs: fs,
		destroy: func() error {
			memMu.Lock()
			delete(memFSs, name)
			memMu.Unlock()
			return nil
		},
	}
}

// NewWithFS 直接使用给定的文件系统 (测试或自定义后端)
func NewWithFS(fs billy.Filesystem) *Adapter {
	return &Adapter{fs: fs, destroy: func() error { return nil }}
}

// layout 返回 Key 对应的路径
// 策略：对象 Key 使用前 2 个字符作为子目录 (Sharding)
// Example: "aabbcc..." -> objects/aa/bbcc...
// 其它 Key (super block / HEAD) 放在根目录
func (s *Adapter) layout(key types.StoreKey) string {
	k := string(key)
	if !key.IsHashed() {
		return k
	}
	return path.Join("objects", k[:2], k[2:])
}

func (s *Adapter) Put(ctx context.Context, key types.StoreKey, data []byte) error {
	targetPath := s.layout(key)

	// 1. 准备目录
	dir := path.Dir(targetPath)
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// 2. 原子写入：先写临时文件，然后 Rename
	tempFile, err := s.fs.TempFile(dir, "temp-")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		s.fs.Remove(tempName)
		return err
	}
	if err := tempFile.Close(); err != nil {
		s.fs.Remove(tempName)
		return err
	}

	// 3. 移动到最终位置 (覆盖旧值)
	// 有的 billy 实现不允许覆盖，先删旧值再试一次
	if err := s.fs.Rename(tempName, targetPath); err != nil {
		s.fs.Remove(targetPath)
		if err := s.fs.Rename(tempName, targetPath); err != nil {
			s.fs.Remove(tempName)
			return fmt.Errorf("failed to commit %s: %w", key, err)
		}
	}
	return nil
}

func (s *Adapter) Get(ctx context.Context, key types.StoreKey) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.layout(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Adapter) Has(ctx context.Context, key types.StoreKey) (bool, error) {
	_, err := s.fs.Stat(s.layout(key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *Adapter) Delete(ctx context.Context, key types.StoreKey) error {
	err := s.fs.Remove(s.layout(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Adapter) Destroy(ctx context.Context) error {
	return s.destroy()
}

func (s *Adapter) Close() error { return nil }
