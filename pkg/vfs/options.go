package vfs

import (
	"context"

	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
)

// OpenOptions 描述打开文件的方式，默认只读
type OpenOptions struct {
	opts     engine.FileOptions
	dedupSet bool
	err      error
}

func NewOpenOptions() *OpenOptions {
	return &OpenOptions{opts: engine.FileOptions{Read: true}}
}

func (o *OpenOptions) Read(b bool) *OpenOptions {
	o.opts.Read = b
	return o
}

func (o *OpenOptions) Write(b bool) *OpenOptions {
	o.opts.Write = b
	return o
}

// Append 每次写入都落在文件末尾，隐含 Write
func (o *OpenOptions) Append(b bool) *OpenOptions {
	o.opts.Append = b
	return o
}

// Truncate 打开时把非空文件截断为一个空版本，隐含 Write
func (o *OpenOptions) Truncate(b bool) *OpenOptions {
	o.opts.Truncate = b
	return o
}

// Create 文件不存在时创建，隐含 Write
func (o *OpenOptions) Create(b bool) *OpenOptions {
	o.opts.Create = b
	return o
}

// CreateNew 要求文件不存在，隐含 Create
func (o *OpenOptions) CreateNew(b bool) *OpenOptions {
	o.opts.CreateNew = b
	return o
}

// VersionLimit 覆盖仓库级别的版本上限，1..255
func (o *OpenOptions) VersionLimit(n uint8) *OpenOptions {
	if n == 0 && o.err == nil {
		o.err = fserr.New(fserr.CodeInvalidArgument, "version limit must be in 1..255")
	}
	o.opts.VersionLimit = n
	return o
}

func (o *OpenOptions) DedupChunk(b bool) *OpenOptions {
	o.opts.DedupChunk = b
	o.dedupSet = true
	return o
}

// Open 按当前选项打开 p
func (o *OpenOptions) Open(repo *Repo, p Path) (*File, error) {
	if o.err != nil {
		return nil, o.err
	}
	if repo == nil {
		return nil, fserr.New(fserr.CodeInvalidArgument, "repo is required")
	}
	if err := checkPaths(p); err != nil {
		return nil, err
	}
	v, err := repo.vol()
	if err != nil {
		return nil, err
	}

	opts := o.opts.Normalize()
	if !opts.Read && !opts.Write {
		return nil, fserr.New(fserr.CodeInvalidArgument, "file must be opened for reading or writing")
	}
	if !o.dedupSet {
		opts.DedupChunk = v.Info().DedupChunk
	}

	h, err := v.OpenFile(context.Background(), p, opts)
	if err != nil {
		return nil, err
	}
	return newFile(repo, v, p, h), nil
}
