package core

import "vaultfs/pkg/types"

// ChunkLink 描述了 Content 对底层 Chunk 的引用
type ChunkLink struct {
	Hash Link `cbor:"h"`
	Size int  `cbor:"s"` // 这个 Chunk 的大小 (关键：用于计算 offset)
}

// Content 将散乱的 Chunk 组装成一个版本的完整内容
type Content struct {
	hash     types.Hash `cbor:"-"`
	rawBytes []byte     `cbor:"-"`

	TypeVal   ObjectType  `cbor:"t"`  // 必须是 "content"
	TotalSize int64       `cbor:"ts"` // 内容总大小
	Chunks    []ChunkLink `cbor:"cs"` // 所有的切片引用
}

// NewContent 创建一个新的内容节点
func NewContent(totalSize int64, chunks []ChunkLink) (*Content, error) {
	if chunks == nil {
		chunks = []ChunkLink{}
	}
	node := &Content{
		TypeVal:   TypeContent,
		TotalSize: totalSize,
		Chunks:    chunks,
	}
	h, b, err := CalculateHash(node)
	if err != nil {
		return nil, err
	}
	node.hash = h
	node.rawBytes = b
	return node, nil
}

// DecodeContent 反序列化并恢复 ID
func DecodeContent(data []byte) (*Content, error) {
	var c Content
	if err := decodeTyped(data, &c, TypeContent, func() ObjectType { return c.TypeVal }); err != nil {
		return nil, err
	}
	c.hash = CalculateBlobHash(data)
	c.rawBytes = data
	return &c, nil
}

func (c *Content) Type() ObjectType { return TypeContent }
func (c *Content) ID() types.Hash   { return c.hash }
func (c *Content) Bytes() []byte    { return c.rawBytes }
func (c *Content) Size() int64      { return c.TotalSize }

// ContentBuilder 按顺序收集 Chunk，最后生成 Content
type ContentBuilder struct {
	total  int64
	chunks []ChunkLink
}

func NewContentBuilder() *ContentBuilder {
	return &ContentBuilder{}
}

func (b *ContentBuilder) Add(c *Chunk) {
	b.chunks = append(b.chunks, ChunkLink{Hash: NewLink(c.ID()), Size: len(c.Bytes())})
	b.total += c.Size()
}

func (b *ContentBuilder) Build() (*Content, error) {
	return NewContent(b.total, b.chunks)
}
