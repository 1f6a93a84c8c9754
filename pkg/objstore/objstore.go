// Package objstore seals DAG objects before they reach a storage.Store.
//
// Every object is compressed (optional), encrypted with the volume data key
// and written under an obscured address, so the backend only ever sees
// random-looking keys and ciphertext.
package objstore

import (
	"context"
	"errors"

	"vaultfs/pkg/compress"
	"vaultfs/pkg/core"
	"vaultfs/pkg/crypto"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"
)

// Store 是加密后的对象存储
type Store struct {
	backend  storage.Store
	sealer   *crypto.Sealer
	addrKey  []byte
	compress bool
}

// New 用卷的 KeySet 构造对象存储
func New(backend storage.Store, c crypto.Cipher, keys *crypto.KeySet, compressed bool) (*Store, error) {
	sealer, err := crypto.NewSealer(c, keys.Data)
	if err != nil {
		return nil, err
	}
	return &Store{
		backend:  backend,
		sealer:   sealer,
		addrKey:  keys.Address,
		compress: compressed,
	}, nil
}

// Backend 返回底层存储
func (s *Store) Backend() storage.Store { return s.backend }

func (s *Store) address(id types.Hash) (types.StoreKey, error) {
	return crypto.ObscureAddress(s.addrKey, id)
}

// HasObject 检查对象是否已经存在 (去重)
func (s *Store) HasObject(ctx context.Context, id types.Hash) (bool, error) {
	key, err := s.address(id)
	if err != nil {
		return false, err
	}
	ok, err := s.backend.Has(ctx, key)
	if err != nil {
		return false, fserr.Wrap(fserr.CodeIo, err, "has object %s", id.Short())
	}
	return ok, nil
}

// PutObject 压缩、加密并写入一个对象。内容寻址，重复写入是幂等的
func (s *Store) PutObject(ctx context.Context, obj core.Object) error {
	key, err := s.address(obj.ID())
	if err != nil {
		return err
	}
	return s.putSealed(ctx, key, obj.Bytes())
}

// GetObject 读取、解密并校验对象，返回明文字节
func (s *Store) GetObject(ctx context.Context, id types.Hash) ([]byte, error) {
	key, err := s.address(id)
	if err != nil {
		return nil, err
	}
	data, err := s.getSealed(ctx, key)
	if err != nil {
		return nil, err
	}
	// 内容寻址：明文的哈希必须等于 ID
	if core.CalculateBlobHash(data) != id {
		return nil, fserr.New(fserr.CodeDecode, "object %s failed integrity check", id.Short())
	}
	return data, nil
}

// DeleteObject 删除一个对象
func (s *Store) DeleteObject(ctx context.Context, id types.Hash) error {
	key, err := s.address(id)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "delete object %s", id.Short())
	}
	return nil
}

// PutNamed 写入一个固定名字的可变记录 (例如 HEAD)
func (s *Store) PutNamed(ctx context.Context, key types.StoreKey, data []byte) error {
	return s.putSealed(ctx, key, data)
}

// GetNamed 读取固定名字的记录；不存在时返回 storage.ErrNotFound
func (s *Store) GetNamed(ctx context.Context, key types.StoreKey) ([]byte, error) {
	return s.getSealed(ctx, key)
}

func (s *Store) putSealed(ctx context.Context, key types.StoreKey, plain []byte) error {
	packed := compress.Pack(plain, s.compress)
	// AAD 绑定存储位置：把一个密文挪到别的 Key 下会解密失败
	blob, err := s.sealer.Seal(packed, []byte(key))
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, key, blob); err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "put %s", shortKey(key))
	}
	return nil
}

func (s *Store) getSealed(ctx context.Context, key types.StoreKey) ([]byte, error) {
	blob, err := storage.ReadAll(ctx, s.backend, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeIo, err, "get %s", shortKey(key))
	}
	packed, err := s.sealer.Open(blob, []byte(key))
	if err != nil {
		return nil, err
	}
	data, err := compress.Unpack(packed)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeDecode, err, "unpack %s", shortKey(key))
	}
	return data, nil
}

func shortKey(k types.StoreKey) string {
	if len(k) > 8 {
		return string(k[:8])
	}
	return string(k)
}
