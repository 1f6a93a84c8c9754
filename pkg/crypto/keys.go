package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"vaultfs/pkg/fserr"
	"vaultfs/pkg/types"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

// HKDF info 字符串，用于从主密钥派生不同用途的子密钥
var (
	infoDataKey    = []byte("vaultfs.volume.data.v1")
	infoAddressKey = []byte("vaultfs.volume.address.v1")
)

// 对象地址混淆用的 domain tag
var addressDomain = []byte("vaultfs.object.ref.v1")

// KeySet 是从卷主密钥派生出的全部子密钥
type KeySet struct {
	Data    []byte // 加密所有对象
	Address []byte // 混淆对象在存储里的 Key
}

func deriveKey(master, info []byte) ([]byte, error) {
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, info), out); err != nil {
		return nil, fserr.Wrap(fserr.CodeInitCrypto, err, "hkdf derivation")
	}
	return out, nil
}

// DeriveKeySet 派生数据密钥和地址密钥
func DeriveKeySet(master []byte) (*KeySet, error) {
	if len(master) != KeySize {
		return nil, fserr.New(fserr.CodeInitCrypto, "master key must be %d bytes", KeySize)
	}
	data, err := deriveKey(master, infoDataKey)
	if err != nil {
		return nil, err
	}
	addr, err := deriveKey(master, infoAddressKey)
	if err != nil {
		return nil, err
	}
	return &KeySet{Data: data, Address: addr}, nil
}

// ObscureAddress 把对象 ID 映射成存储 Key。
// 结果是确定性的 (同一 ID 同一 Key，保证去重)，没有密钥就无法反推内容哈希。
func ObscureAddress(addressKey []byte, id types.Hash) (types.StoreKey, error) {
	hasher, err := blake3.NewKeyed(addressKey)
	if err != nil {
		return "", fserr.Wrap(fserr.CodeHashing, err, "blake3 keyed hasher")
	}
	hasher.Write(addressDomain)
	hasher.Write([]byte(id))
	return types.StoreKey(hex.EncodeToString(hasher.Sum(nil))), nil
}

// Checksum 是 super block 的完整性校验 (非密钥)
func Checksum(data []byte) []byte {
	sum := blake3.Sum256(data)
	return sum[:]
}
