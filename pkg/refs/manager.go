package refs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"vaultfs/pkg/core"
	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"
)

var (
	ErrNoHead           = errors.New("HEAD not found (clean repo)")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
)

const headKey types.StoreKey = "HEAD"

// Store 是 Manager 需要的最小存储能力：按名字读写一条记录
type Store interface {
	GetNamed(ctx context.Context, key types.StoreKey) ([]byte, error)
	PutNamed(ctx context.Context, key types.StoreKey, data []byte) error
}

// head 是 HEAD 记录的持久化形式
type head struct {
	Commit  types.Hash `cbor:"c"`
	Version int64      `cbor:"v"`
}

// Manager 负责管理引用 (Refs)，目前只有 HEAD
type Manager struct {
	store Store
	mu    sync.Mutex
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// GetHead 读取当前的 Commit Hash 和它的版本号
// 如果是新仓库（没提交过），返回 ErrNoHead
func (m *Manager) GetHead(ctx context.Context) (types.Hash, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, err := m.load(ctx)
	if err != nil {
		return "", 0, err
	}
	return h.Commit, h.Version, nil
}

func (m *Manager) load(ctx context.Context) (head, error) {
	data, err := m.store.GetNamed(ctx, headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return head{}, ErrNoHead
	}
	if err != nil {
		return head{}, fmt.Errorf("failed to read HEAD: %w", err)
	}
	var h head
	if err := core.DecodeObject(data, &h); err != nil {
		return head{}, fmt.Errorf("failed to decode HEAD: %w", err)
	}
	return h, nil
}

// UpdateHead 原子更新 HEAD (CAS - Compare And Swap)
// oldVersion: 你之前读到的版本号；首次创建传 0。
// 如果当前版本号不等于 oldVersion，说明有人抢先改了，返回 ErrConcurrentUpdate
func (m *Manager) UpdateHead(ctx context.Context, commitHash types.Hash, oldVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.load(ctx)
	switch {
	case errors.Is(err, ErrNoHead):
		current = head{}
	case err != nil:
		return err
	}
	if current.Version != oldVersion {
		return ErrConcurrentUpdate
	}

	data, err := core.Marshal(head{Commit: commitHash, Version: oldVersion + 1})
	if err != nil {
		return fmt.Errorf("failed to encode HEAD: %w", err)
	}
	// 底层 Put 是原子覆盖：读者要么看到旧 HEAD，要么看到新 HEAD
	if err := m.store.PutNamed(ctx, headKey, data); err != nil {
		return fmt.Errorf("failed to write HEAD: %w", err)
	}
	return nil
}
