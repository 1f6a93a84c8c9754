package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"vaultfs/pkg/core"
	"vaultfs/pkg/types"
)

// ObjectReader 是 Exporter 需要的存储能力 (objstore.Store 实现了它)
type ObjectReader interface {
	GetObject(ctx context.Context, id types.Hash) ([]byte, error)
}

type Exporter struct {
	store ObjectReader
}

func NewExporter(store ObjectReader) *Exporter {
	return &Exporter{store: store}
}

// LoadContent 读取并解码一个 Content 对象
func (e *Exporter) LoadContent(ctx context.Context, id types.Hash) (*core.Content, error) {
	data, err := e.store.GetObject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get content %s: %w", id.Short(), err)
	}
	return core.DecodeContent(data)
}

// Export 按顺序把全部 Chunk 写入 writer (Reassembly)
func (e *Exporter) Export(ctx context.Context, content *core.Content, writer io.Writer) error {
	for i, link := range content.Chunks {
		data, err := e.store.GetObject(ctx, link.Hash.Hash)
		if err != nil {
			return fmt.Errorf("failed to get chunk %d: %w", i, err)
		}
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf("failed to write chunk %d data: %w", i, err)
		}
	}
	return nil
}

// ReadAll 还原完整内容
func (e *Exporter) ReadAll(ctx context.Context, content *core.Content) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(int(content.TotalSize))
	if err := e.Export(ctx, content, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadAt 从 off 开始读满 p (随机访问)，语义同 io.ReaderAt：
// 读到末尾不足 len(p) 时返回 io.EOF
// 连续读同一个 Content 时用 NewReader，避免反复解密同一个 Chunk
func (e *Exporter) ReadAt(ctx context.Context, content *core.Content, p []byte, off int64) (int, error) {
	return e.NewReader(content).ReadAt(ctx, p, off)
}

// Reader 对一个 Content 做随机读，缓存最近读过的一个 Chunk
// 不是并发安全的，调用方负责加锁
type Reader struct {
	e       *Exporter
	content *core.Content
	ends    []int64 // ends[i] 是第 i 个 Chunk 的结束 offset

	idx  int // 缓存的 Chunk 下标，-1 表示没有
	data []byte
}

func (e *Exporter) NewReader(content *core.Content) *Reader {
	ends := make([]int64, len(content.Chunks))
	var end int64
	for i, link := range content.Chunks {
		end += int64(link.Size)
		ends[i] = end
	}
	return &Reader{e: e, content: content, ends: ends, idx: -1}
}

func (r *Reader) Content() *core.Content { return r.content }

// chunk 返回第 i 个 Chunk 的明文
func (r *Reader) chunk(ctx context.Context, i int) ([]byte, error) {
	if i == r.idx {
		return r.data, nil
	}
	link := r.content.Chunks[i]
	data, err := r.e.store.GetObject(ctx, link.Hash.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk %d: %w", i, err)
	}
	if len(data) != link.Size {
		return nil, fmt.Errorf("chunk %d is %d bytes, expected %d", i, len(data), link.Size)
	}
	r.idx, r.data = i, data
	return data, nil
}

func (r *Reader) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= r.content.TotalSize {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	// 1. 二分找到包含 off 的 Chunk
	i := sort.Search(len(r.ends), func(i int) bool { return r.ends[i] > off })

	// 2. 从 Chunk 内的相对位置开始拷贝，直到 p 满
	n := 0
	for ; i < len(r.ends); i++ {
		data, err := r.chunk(ctx, i)
		if err != nil {
			return n, err
		}
		start := r.ends[i] - int64(len(data))
		pos := off + int64(n)
		n += copy(p[n:], data[pos-start:])
		if n == len(p) {
			return n, nil
		}
	}
	return n, io.EOF
}
