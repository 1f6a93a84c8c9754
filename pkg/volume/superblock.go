package volume

import (
	"bytes"
	"context"
	"errors"
	"time"

	"vaultfs/pkg/core"
	"vaultfs/pkg/crypto"
	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/logging"
	"vaultfs/pkg/storage"
	"vaultfs/pkg/types"
)

const (
	superMagic   = "VAULTFS"
	superVersion = 1
)

// 主副两份 super block，任何一份完好都能打开仓库
var superKeys = [2]types.StoreKey{"super.0", "super.1"}

// superBody 是 super block 的内容。它本身是明文的，
// 只有 WrappedKey 是用口令派生的密钥加密过的卷主密钥
type superBody struct {
	Magic        string `cbor:"m"`
	Version      uint8  `cbor:"v"`
	VolumeID     []byte `cbor:"id"`
	Salt         []byte `cbor:"s"`
	OpsLimit     int    `cbor:"ops"`
	MemLimit     int    `cbor:"mem"`
	Cipher       int    `cbor:"c"`
	Compress     bool   `cbor:"z"`
	VersionLimit uint8  `cbor:"vl"`
	DedupChunk   bool   `cbor:"dd"`
	CreatedAt    int64  `cbor:"ct"`
	WrappedKey   []byte `cbor:"k"`
}

// superBlock 是落盘形式：Body 加上 BLAKE3 校验和
type superBlock struct {
	Body []byte `cbor:"b"`
	Sum  []byte `cbor:"s"`
}

func (b *superBody) cipher() crypto.Cipher { return crypto.Cipher(b.Cipher) }
func (b *superBody) ops() crypto.Cost      { return crypto.Cost(b.OpsLimit) }
func (b *superBody) mem() crypto.Cost      { return crypto.Cost(b.MemLimit) }

// wrapIdentity 把包装后的主密钥绑定到这个卷
func (b *superBody) wrapIdentity() []byte {
	return append([]byte("vaultfs.super."), b.VolumeID...)
}

// wrap 用口令重新包装主密钥；会生成新的 salt
func (b *superBody) wrap(pwd string, ops, mem crypto.Cost, master []byte) error {
	salt, err := crypto.RandomBytes(crypto.SaltSize)
	if err != nil {
		return err
	}
	pwdKey, err := crypto.DeriveKey(pwd, salt, ops, mem)
	if err != nil {
		return err
	}
	sealer, err := crypto.NewSealer(b.cipher(), pwdKey)
	if err != nil {
		return err
	}
	wrapped, err := sealer.Seal(master, b.wrapIdentity())
	if err != nil {
		return err
	}
	b.Salt = salt
	b.OpsLimit = int(ops)
	b.MemLimit = int(mem)
	b.WrappedKey = wrapped
	return nil
}

// unwrap 用口令解出主密钥；口令错误返回 Decrypt
func (b *superBody) unwrap(pwd string) ([]byte, error) {
	pwdKey, err := crypto.DeriveKey(pwd, b.Salt, b.ops(), b.mem())
	if err != nil {
		return nil, err
	}
	sealer, err := crypto.NewSealer(b.cipher(), pwdKey)
	if err != nil {
		return nil, err
	}
	master, err := sealer.Open(b.WrappedKey, b.wrapIdentity())
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeDecrypt, err, "wrong password or damaged key")
	}
	return master, nil
}

func (b *superBody) info(uri string, readOnly bool) engine.RepoInfo {
	info := engine.RepoInfo{
		Version:      engine.VersionString(),
		URI:          uri,
		OpsLimit:     b.ops(),
		MemLimit:     b.mem(),
		Cipher:       b.cipher(),
		Compress:     b.Compress,
		VersionLimit: b.VersionLimit,
		DedupChunk:   b.DedupChunk,
		IsReadOnly:   readOnly,
		CreatedAt:    time.Unix(0, b.CreatedAt),
	}
	copy(info.VolumeID[:], b.VolumeID)
	return info
}

// newSuper 为新仓库生成 super block 和随机主密钥
func newSuper(pwd string, cfg engine.Config) (*superBody, []byte, error) {
	volID, err := crypto.RandomBytes(32)
	if err != nil {
		return nil, nil, err
	}
	master, err := crypto.RandomBytes(crypto.KeySize)
	if err != nil {
		return nil, nil, err
	}
	limit := cfg.VersionLimit
	if limit == 0 {
		limit = 1
	}
	body := &superBody{
		Magic:        superMagic,
		Version:      superVersion,
		VolumeID:     volID,
		Cipher:       int(cfg.Cipher),
		Compress:     cfg.Compress,
		VersionLimit: limit,
		DedupChunk:   cfg.DedupChunk,
		CreatedAt:    time.Now().UnixNano(),
	}
	if err := body.wrap(pwd, cfg.OpsLimit, cfg.MemLimit, master); err != nil {
		return nil, nil, err
	}
	return body, master, nil
}

func encodeSuper(body *superBody) ([]byte, error) {
	raw, err := core.Marshal(body)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeEncode, err, "encode super block")
	}
	data, err := core.Marshal(superBlock{Body: raw, Sum: crypto.Checksum(raw)})
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeEncode, err, "encode super block")
	}
	return data, nil
}

// writeSuper 写入主副两份
func writeSuper(ctx context.Context, store storage.Store, body *superBody) error {
	data, err := encodeSuper(body)
	if err != nil {
		return err
	}
	for _, key := range superKeys {
		if err := store.Put(ctx, key, data); err != nil {
			return fserr.Wrap(fserr.CodeIo, err, "write %s", key)
		}
	}
	return nil
}

// readSuper 读取并校验一份 super block
func readSuper(ctx context.Context, store storage.Store, key types.StoreKey) (*superBody, error) {
	data, err := storage.ReadAll(ctx, store, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fserr.New(fserr.CodeNotFound, "%s not found", key)
	}
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeIo, err, "read %s", key)
	}

	var blk superBlock
	if err := core.DecodeObject(data, &blk); err != nil {
		return nil, fserr.Wrap(fserr.CodeCorruptedSuperBlk, err, "%s is damaged", key)
	}
	if !bytes.Equal(crypto.Checksum(blk.Body), blk.Sum) {
		return nil, fserr.New(fserr.CodeCorruptedSuperBlk, "%s checksum mismatch", key)
	}

	var body superBody
	if err := core.DecodeObject(blk.Body, &body); err != nil {
		return nil, fserr.Wrap(fserr.CodeInvalidSuperBlk, err, "%s body", key)
	}
	if body.Magic != superMagic {
		return nil, fserr.New(fserr.CodeInvalidSuperBlk, "%s has bad magic %q", key, body.Magic)
	}
	if body.Version != superVersion {
		return nil, fserr.New(fserr.CodeWrongVersion, "super block version %d, want %d", body.Version, superVersion)
	}
	return &body, nil
}

// superExists 任意一份存在即认为仓库存在
func superExists(ctx context.Context, store storage.Store) (bool, error) {
	for _, key := range superKeys {
		ok, err := store.Has(ctx, key)
		if err != nil {
			return false, fserr.Wrap(fserr.CodeIo, err, "check %s", key)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// openSuper 依次尝试主副两份，返回第一份能用口令解开的
func openSuper(ctx context.Context, store storage.Store, pwd string) (*superBody, []byte, error) {
	var firstErr error
	for _, key := range superKeys {
		body, err := readSuper(ctx, store, key)
		if err != nil {
			logging.Warn("super block unusable", logging.String("key", string(key)), logging.Err(err))
			if firstErr == nil || fserr.CodeOf(firstErr) == fserr.CodeNotFound {
				firstErr = err
			}
			continue
		}
		// 校验和正确但解不开，只能是口令错误；另一份用的是同一个口令
		master, err := body.unwrap(pwd)
		if err != nil {
			return nil, nil, err
		}
		return body, master, nil
	}
	return nil, nil, firstErr
}

// repairSuper 用完好的一份覆盖损坏的一份；会先用口令验证
func repairSuper(ctx context.Context, store storage.Store, pwd string) error {
	body, _, err := openSuper(ctx, store, pwd)
	if err != nil {
		return err
	}
	return writeSuper(ctx, store, body)
}
