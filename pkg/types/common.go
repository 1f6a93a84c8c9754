// pkg/types/common.go
package types

// Hash 代表对象的唯一标识符 (32 字节摘要的 Hex String)
// 这是一个“值对象”，应当是不可变的。
type Hash string

func (h Hash) String() string { return string(h) }

// 验证 Hash 合法性
func (h Hash) IsZero() bool  { return h == "" }
func (h Hash) IsValid() bool { return len(h) == 64 } // 简单的长度检查

// Short 返回前 8 位，用于日志
func (h Hash) Short() string {
	if len(h) < 8 {
		return string(h)
	}
	return string(h[:8])
}

// StoreKey 是后端存储里的物理 Key。
// 内容对象的 Key 是经过混淆的 Hash，元数据 (super block / HEAD) 用固定名字。
type StoreKey string

func (k StoreKey) String() string { return string(k) }

// IsHashed 判断 Key 是否是一个 64 位 Hex 的对象 Key (决定是否分片存储)
func (k StoreKey) IsHashed() bool { return len(k) == 64 }
