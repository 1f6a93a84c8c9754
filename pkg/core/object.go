package core

import "vaultfs/pkg/types"

// ObjectType 定义了卷里持久化的对象类型
type ObjectType string

const (
	TypeChunk   ObjectType = "chunk"   // 原始数据块 (L1)
	TypeContent ObjectType = "content" // 一个版本的内容: 有序的 Chunk 列表 (L2)
	TypeInode   ObjectType = "inode"   // 文件: 版本列表 (L3)
	TypeTree    ObjectType = "tree"    // 目录 (L3)
	TypeCommit  ObjectType = "commit"  // 整棵树的一次原子提交 (L4)
)

// Object 是所有 Merkle DAG 节点的通用接口
type Object interface {
	// Type 返回对象类型
	Type() ObjectType

	// ID 返回对象的哈希值 (CID)
	ID() types.Hash

	// Bytes 返回对象的序列化数据 (用于存储)
	Bytes() []byte
}
