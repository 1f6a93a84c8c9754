package core

import "vaultfs/pkg/types"

// VersionEntry 是文件的一个不可变版本
type VersionEntry struct {
	Num       uint64 `cbor:"n"`
	Len       int64  `cbor:"l"`
	CreatedAt int64  `cbor:"c"` // UnixNano
	Content   Link   `cbor:"h"`
}

// Inode 记录一个文件保留下来的版本 (按版本号升序)
type Inode struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal      ObjectType     `cbor:"t"`
	CurrVersion  uint64         `cbor:"v"`
	VersionLimit uint8          `cbor:"vl"`
	Dedup        bool           `cbor:"d"`
	CreatedAt    int64          `cbor:"ct"`
	ModifiedAt   int64          `cbor:"mt"`
	Versions     []VersionEntry `cbor:"vs"`
}

// InodeSpec 是构造 Inode 的参数
type InodeSpec struct {
	CurrVersion  uint64
	VersionLimit uint8
	Dedup        bool
	CreatedAt    int64
	ModifiedAt   int64
	Versions     []VersionEntry
}

func NewInode(spec InodeSpec) (*Inode, error) {
	versions := spec.Versions
	if versions == nil {
		versions = []VersionEntry{}
	}
	n := &Inode{
		TypeVal:      TypeInode,
		CurrVersion:  spec.CurrVersion,
		VersionLimit: spec.VersionLimit,
		Dedup:        spec.Dedup,
		CreatedAt:    spec.CreatedAt,
		ModifiedAt:   spec.ModifiedAt,
		Versions:     versions,
	}
	h, b, err := CalculateHash(n)
	if err != nil {
		return nil, err
	}
	n.hash = h
	n.rawBytes = b
	return n, nil
}

func DecodeInode(data []byte) (*Inode, error) {
	var n Inode
	if err := decodeTyped(data, &n, TypeInode, func() ObjectType { return n.TypeVal }); err != nil {
		return nil, err
	}
	n.hash = CalculateBlobHash(data)
	n.rawBytes = data
	return &n, nil
}

func (n *Inode) Type() ObjectType { return TypeInode }
func (n *Inode) ID() types.Hash   { return n.hash }
func (n *Inode) Bytes() []byte    { return n.rawBytes }

// Latest 返回当前版本；没有任何版本时 ok=false
func (n *Inode) Latest() (VersionEntry, bool) {
	if len(n.Versions) == 0 {
		return VersionEntry{}, false
	}
	return n.Versions[len(n.Versions)-1], true
}
