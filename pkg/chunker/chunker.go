package chunker

import (
	"math"
)

// 内容定义切分 (FastCDC) 的块大小范围，单位字节
// 写入一个版本时，同一文件的相邻版本靠这些边界共享大部分 Chunk
const (
	MinSize   = 4 * 1024
	AvgSize   = 8 * 1024
	MaxSize   = 64 * 1024
	NormLevel = 2 // 归一化等级：平均大小前用严掩码，之后用宽掩码

	// FixedSize 是关闭去重时的定长块大小
	FixedSize = 32 * 1024
)

// Chunker 只保存两个掩码，可以被多个写入并发共用
type Chunker struct {
	maskS uint64
	maskL uint64
}

func NewChunker() *Chunker {
	bits := int(math.Round(math.Log2(float64(AvgSize))))
	return &Chunker{
		maskS: uint64(1<<(bits+NormLevel)) - 1,
		maskL: uint64(1<<(bits-NormLevel)) - 1,
	}
}

// Cut 返回每个块的结束 offset，最后一个等于 len(data)；空数据返回 nil
func (c *Chunker) Cut(data []byte) []int {
	var ends []int
	start := 0
	size := len(data)

	for start < size {
		// 尾部不足一个最小块时整体作为最后一块
		if size-start <= MinSize {
			return append(ends, size)
		}

		fp := uint64(0)
		idx := start + MinSize

		normLimit := min(start+AvgSize, size)
		maxLimit := min(start+MaxSize, size)

		// scan 在 [idx, limit) 内找第一个满足掩码的位置，找到就切
		scan := func(limit int, mask uint64) bool {
			for ; idx < limit; idx++ {
				fp = (fp << 1) + gearTable[data[idx]]
				if (fp & mask) == 0 {
					ends = append(ends, idx+1)
					start = idx + 1
					return true
				}
			}
			return false
		}

		if scan(normLimit, c.maskS) || scan(maxLimit, c.maskL) {
			continue
		}
		// 到 MaxSize 仍没有切点
		ends = append(ends, maxLimit)
		start = maxLimit
	}

	return ends
}

// FixedCut 按固定大小切分，用于不需要内容去重的文件
func FixedCut(data []byte, size int) []int {
	if size <= 0 {
		size = FixedSize
	}
	var cutPoints []int
	for end := size; ; end += size {
		if end >= len(data) {
			if len(data) > 0 {
				cutPoints = append(cutPoints, len(data))
			}
			return cutPoints
		}
		cutPoints = append(cutPoints, end)
	}
}
