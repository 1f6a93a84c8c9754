package core

import (
	"time"

	"vaultfs/pkg/types"
)

// Commit 是整个命名空间的一次原子提交，HEAD 指向最新的 Commit
type Commit struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal ObjectType `cbor:"t"`

	TreeCid Link   `cbor:"th"`
	Parents []Link `cbor:"p"`

	// Seq 每次提交 +1，用于日志排查
	Seq     uint64 `cbor:"sq"`
	Message string `cbor:"m"`

	Timestamp int64 `cbor:"ts"`
}

func NewCommit(treeHash types.Hash, parents []types.Hash, seq uint64, msg string) (*Commit, error) {
	parentLinks := make([]Link, len(parents))
	for i, p := range parents {
		parentLinks[i] = NewLink(p)
	}

	c := &Commit{
		TypeVal:   TypeCommit,
		TreeCid:   NewLink(treeHash),
		Parents:   parentLinks,
		Seq:       seq,
		Message:   msg,
		Timestamp: time.Now().Unix(),
	}

	h, b, err := CalculateHash(c)
	if err != nil {
		return nil, err
	}
	c.hash = h
	c.rawBytes = b
	return c, nil
}

func DecodeCommit(data []byte) (*Commit, error) {
	var c Commit
	if err := decodeTyped(data, &c, TypeCommit, func() ObjectType { return c.TypeVal }); err != nil {
		return nil, err
	}
	c.hash = CalculateBlobHash(data)
	c.rawBytes = data
	return &c, nil
}

func (c *Commit) Type() ObjectType { return TypeCommit }
func (c *Commit) ID() types.Hash   { return c.hash }
func (c *Commit) Bytes() []byte    { return c.rawBytes }
