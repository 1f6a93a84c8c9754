package namespace

import (
	"context"
	"fmt"

	"vaultfs/pkg/core"
	"vaultfs/pkg/types"
)

// ObjectStore 是持久化目录树需要的存储能力 (objstore.Store 实现了它)
type ObjectStore interface {
	GetObject(ctx context.Context, id types.Hash) ([]byte, error)
	PutObject(ctx context.Context, obj core.Object) error
}

// Builder 负责把内存目录树转换为 Merkle Tree 并持久化
type Builder struct {
	store ObjectStore
}

func NewBuilder(store ObjectStore) *Builder {
	return &Builder{store: store}
}

// Build 自底向上计算 Hash 并持久化，返回根树的 Hash
// 只有新建或修改过的节点会被写入，未修改的子树直接复用已有的 ID
func (b *Builder) Build(ctx context.Context, root *Node) (types.Hash, error) {
	if !root.IsDir() {
		return "", fmt.Errorf("namespace root must be a directory")
	}
	return b.writeNode(ctx, root)
}

// writeNode 递归地将内存节点转换为 core.Tree / core.Inode 并写入存储
func (b *Builder) writeNode(ctx context.Context, n *Node) (types.Hash, error) {
	// Base Case: 已经持久化过
	if n.id != "" {
		return n.id, nil
	}

	if n.IsFile() {
		inode, err := core.NewInode(core.InodeSpec{
			CurrVersion:  n.file.CurrVersion,
			VersionLimit: n.file.VersionLimit,
			Dedup:        n.file.Dedup,
			CreatedAt:    n.createdAt,
			ModifiedAt:   n.modifiedAt,
			Versions:     n.file.Versions,
		})
		if err != nil {
			return "", fmt.Errorf("failed to create inode object: %w", err)
		}
		if err := b.store.PutObject(ctx, inode); err != nil {
			return "", fmt.Errorf("failed to store inode: %w", err)
		}
		n.id = inode.ID()
		return n.id, nil
	}

	// Recursive Step: 目录按创建顺序处理子节点 (顺序本身就是目录内容的一部分)
	entries := make([]core.TreeEntry, 0, len(n.names))
	for _, name := range n.names {
		child := n.children[name]

		// 1. 递归获取子节点的 Hash
		childHash, err := b.writeNode(ctx, child)
		if err != nil {
			return "", err
		}

		// 2. 构造 TreeEntry；目录 Size 为 0，文件 Size 是当前版本长度
		size := int64(0)
		if v, ok := child.file.Latest(); ok && child.IsFile() {
			size = v.Len
		}
		entries = append(entries, core.TreeEntry{
			Name: name,
			Type: child.kind,
			Hash: core.NewLink(childHash),
			Size: size,
		})
	}

	// 3. 创建 core.Tree 对象
	treeObj, err := core.NewTree(entries, n.createdAt, n.modifiedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create tree object: %w", err)
	}

	// 4. 持久化 Tree 对象
	if err := b.store.PutObject(ctx, treeObj); err != nil {
		return "", fmt.Errorf("failed to store tree: %w", err)
	}
	n.id = treeObj.ID()
	return n.id, nil
}

// Load 从根 Tree 的 Hash 还原整棵内存目录树
func Load(ctx context.Context, store ObjectStore, treeID types.Hash) (*Node, error) {
	data, err := store.GetObject(ctx, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree %s: %w", treeID.Short(), err)
	}
	tree, err := core.DecodeTree(data)
	if err != nil {
		return nil, err
	}

	n := &Node{
		kind:       core.EntryDir,
		createdAt:  tree.CreatedAt,
		modifiedAt: tree.ModifiedAt,
		names:      make([]string, 0, len(tree.Entries)),
		children:   make(map[string]*Node, len(tree.Entries)),
		id:         tree.ID(),
	}
	for _, e := range tree.Entries {
		var child *Node
		switch e.Type {
		case core.EntryDir:
			child, err = Load(ctx, store, e.Hash.Hash)
		case core.EntryFile:
			child, err = loadFile(ctx, store, e.Hash.Hash)
		default:
			err = fmt.Errorf("unknown entry type %q in tree %s", e.Type, treeID.Short())
		}
		if err != nil {
			return nil, err
		}
		n.names = append(n.names, e.Name)
		n.children[e.Name] = child
	}
	return n, nil
}

func loadFile(ctx context.Context, store ObjectStore, id types.Hash) (*Node, error) {
	data, err := store.GetObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get inode %s: %w", id.Short(), err)
	}
	inode, err := core.DecodeInode(data)
	if err != nil {
		return nil, err
	}
	return &Node{
		kind:       core.EntryFile,
		createdAt:  inode.CreatedAt,
		modifiedAt: inode.ModifiedAt,
		file: FileState{
			CurrVersion:  inode.CurrVersion,
			VersionLimit: inode.VersionLimit,
			Dedup:        inode.Dedup,
			Versions:     inode.Versions,
		},
		id: inode.ID(),
	}, nil
}
