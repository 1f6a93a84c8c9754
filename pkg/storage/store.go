package storage

import (
	"context"
	"errors"
	"io"

	"vaultfs/pkg/types"
)

var (
	ErrNotFound = errors.New("object not found")
)

// Store defines the interface for a storage backend.
// Implementations can be local disk, in-memory, cloud object storage or SQL.
//
// Store 只认识 Key 和字节：加密、压缩、寻址都在上层完成
type Store interface {
	// Put 写入 (覆盖) 一个对象。实现必须保证原子性：
	// 读者要么看到旧值，要么看到完整的新值
	Put(ctx context.Context, key types.StoreKey, data []byte) error

	// Get 读取原始数据，不存在时返回 ErrNotFound
	Get(ctx context.Context, key types.StoreKey) (io.ReadCloser, error)

	// Has 检查对象是否存在 (用于去重逻辑)
	Has(ctx context.Context, key types.StoreKey) (bool, error)

	// Delete 删除对象，不存在不算错
	Delete(ctx context.Context, key types.StoreKey) error

	// Destroy 删除这个位置下的全部数据
	Destroy(ctx context.Context) error

	// Close 释放连接等资源
	Close() error
}

// ReadAll 是 Get + io.ReadAll 的便捷封装
func ReadAll(ctx context.Context, s Store, key types.StoreKey) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
