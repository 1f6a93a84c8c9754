package ingester

import (
	"context"
	"fmt"
	"io"

	"vaultfs/pkg/chunker"
	"vaultfs/pkg/core"
	"vaultfs/pkg/logging"
	"vaultfs/pkg/types"

	"golang.org/x/sync/errgroup"
)

// ObjectWriter 是 Ingester 需要的存储能力 (objstore.Store 实现了它)
type ObjectWriter interface {
	HasObject(ctx context.Context, id types.Hash) (bool, error)
	PutObject(ctx context.Context, obj core.Object) error
}

type Ingester struct {
	store       ObjectWriter
	chunker     *chunker.Chunker
	concurrency int
}

// NewIngester concurrency 是单次提交里并发上传 Chunk 的上限
func NewIngester(store ObjectWriter, concurrency int) *Ingester {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Ingester{
		store:       store,
		chunker:     chunker.NewChunker(),
		concurrency: concurrency,
	}
}

// IngestReader 读取一个流，切分，存储，并返回 Content
func (ing *Ingester) IngestReader(ctx context.Context, reader io.Reader, dedup bool) (*core.Content, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return ing.Ingest(ctx, data, dedup)
}

// Ingest 把一个版本的完整内容写入存储
// dedup=true 用 FastCDC 内容定义切分 (内容平移后依然能复用 Chunk)，否则定长切分
func (ing *Ingester) Ingest(ctx context.Context, data []byte, dedup bool) (*core.Content, error) {
	// 1. 切分
	var cutPoints []int
	if dedup {
		cutPoints = ing.chunker.Cut(data)
	} else {
		cutPoints = chunker.FixedCut(data, chunker.FixedSize)
	}

	// 2. 遍历切点，创建 Chunk 对象
	builder := core.NewContentBuilder()
	chunks := make([]*core.Chunk, 0, len(cutPoints))
	start := 0
	for _, end := range cutPoints {
		c := core.NewChunk(data[start:end])
		chunks = append(chunks, c)
		builder.Add(c)
		start = end
	}

	// 3. 并发上传，全部完成才返回；任意一个失败就取消其余的
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)
	seen := make(map[types.Hash]struct{}, len(chunks))
	for _, c := range chunks {
		// 同一次提交内重复的 Chunk 只传一次
		if _, dup := seen[c.ID()]; dup {
			continue
		}
		seen[c.ID()] = struct{}{}

		g.Go(func() error {
			return ing.putIfAbsent(gctx, c)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to store chunk: %w", err)
	}

	// 4. 创建 Content 并存储
	content, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create content: %w", err)
	}
	if err := ing.putIfAbsent(ctx, content); err != nil {
		return nil, fmt.Errorf("failed to store content: %w", err)
	}

	logging.Debug("content ingested",
		logging.String("content", content.ID().Short()),
		logging.Int("chunks", len(chunks)),
		logging.Int64("size", content.TotalSize))
	return content, nil
}

// putIfAbsent 先 Has 再 Put：对象是内容寻址的，存在即相同
func (ing *Ingester) putIfAbsent(ctx context.Context, obj core.Object) error {
	exists, err := ing.store.HasObject(ctx, obj.ID())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return ing.store.PutObject(ctx, obj)
}
