package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"vaultfs/pkg/types"

	"github.com/fxamacker/cbor/v2"
)

// 规范化 CBOR 编码: 同一个对象永远得到同样的字节，因此也得到同样的 ID
var encOptions = cbor.EncOptions{
	// Map Key 按 Canonical 顺序排序
	Sort: cbor.SortCanonical,

	ShortestFloat: cbor.ShortestFloatNone,

	// 时间一律编码为 Unix 整数，不生成 Tag 0/1
	Time:    cbor.TimeUnix,
	TimeTag: cbor.EncTagNone,

	// 数组和 Map 必须在头部声明长度
	IndefLength: cbor.IndefLengthForbidden,

	BigIntConvert: cbor.BigIntConvertShortest,
}

var em, _ = encOptions.EncMode()

// 解码时限制容器大小和嵌套深度；存储里的数据已经过 AEAD 认证，
// 这里防的是程序 bug 产生的畸形对象
var decOptions = cbor.DecOptions{
	MaxArrayElements: 1 << 20,
	MaxMapPairs:      10000,
	MaxNestedLevels:  100,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

// CalculateHash 计算对象的 Hash (CID) 和序列化数据
func CalculateHash(v any) (types.Hash, []byte, error) {
	data, err := em.Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal object: %w", err)
	}
	return CalculateBlobHash(data), data, nil
}

// CalculateBlobHash 计算原始数据块的 Hash (SHA-256)
func CalculateBlobHash(data []byte) types.Hash {
	sum := sha256.Sum256(data)
	return types.Hash(hex.EncodeToString(sum[:]))
}

// Marshal 用规范化模式编码任意值 (super block 等非 DAG 结构也走这里)
func Marshal(v any) ([]byte, error) {
	return em.Marshal(v)
}

// DecodeObject 通用的解码函数
func DecodeObject(data []byte, v any) error {
	return dm.Unmarshal(data, v)
}

// decodeTyped 解码并做类型防御检查
func decodeTyped(data []byte, v any, want ObjectType, got func() ObjectType) error {
	if err := dm.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", want, err)
	}
	if got() != want {
		return fmt.Errorf("object is not a %s, got: %s", want, got())
	}
	return nil
}
