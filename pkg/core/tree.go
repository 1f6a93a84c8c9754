package core

import (
	"fmt"

	"vaultfs/pkg/types"
)

type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

type TreeEntry struct {
	Name string    `cbor:"n"`
	Type EntryType `cbor:"t"`
	Hash Link      `cbor:"h"`
	Size int64     `cbor:"s"`
}

// Tree 是一个目录。Entries 保持创建顺序，不排序
type Tree struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal    ObjectType  `cbor:"t"`
	CreatedAt  int64       `cbor:"ct"`
	ModifiedAt int64       `cbor:"mt"`
	Entries    []TreeEntry `cbor:"e"`
}

// NewTree 创建一个新的目录树节点
func NewTree(entries []TreeEntry, createdAt, modifiedAt int64) (*Tree, error) {
	if entries == nil {
		entries = []TreeEntry{}
	}
	t := &Tree{
		TypeVal:    TypeTree,
		CreatedAt:  createdAt,
		ModifiedAt: modifiedAt,
		Entries:    entries,
	}
	h, b, err := CalculateHash(t)
	if err != nil {
		return nil, err
	}
	t.hash = h
	t.rawBytes = b
	return t, nil
}

func DecodeTree(data []byte) (*Tree, error) {
	var t Tree
	if err := decodeTyped(data, &t, TypeTree, func() ObjectType { return t.TypeVal }); err != nil {
		return nil, err
	}
	t.hash = CalculateBlobHash(data)
	t.rawBytes = data
	return &t, nil
}

// NewTreeEntryFromObject 自动根据子对象生成条目
func NewTreeEntryFromObject(name string, child Object) (TreeEntry, error) {
	var entryType EntryType
	var size int64

	switch n := child.(type) {
	case *Inode:
		entryType = EntryFile
		if v, ok := n.Latest(); ok {
			size = v.Len
		}
	case *Tree:
		entryType = EntryDir
	default:
		return TreeEntry{}, fmt.Errorf("unsupported object type in tree: %s", child.Type())
	}

	return TreeEntry{
		Name: name,
		Type: entryType,
		Hash: NewLink(child.ID()),
		Size: size,
	}, nil
}

func (t *Tree) Type() ObjectType { return TypeTree }
func (t *Tree) ID() types.Hash   { return t.hash }
func (t *Tree) Bytes() []byte    { return t.rawBytes }
