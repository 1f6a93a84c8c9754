package volume

import (
	"context"
	"errors"
	"io"
	"math"
	"sync"

	"vaultfs/pkg/core"
	"vaultfs/pkg/engine"
	"vaultfs/pkg/exporter"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/namespace"
	"vaultfs/pkg/vpath"
)

// fileHandle 是一个打开的文件或版本读取器
type fileHandle struct {
	mu sync.Mutex

	path   vpath.Path
	read   bool
	write  bool
	append bool

	versionLimit uint8 // 0 表示沿用文件的设置
	dedup        bool

	// 读写共用一个游标
	pos int64

	// 未提交的写入：第一次 Write 时从最新版本复制过来
	pending []byte
	dirty   bool

	// 版本读取器固定在一个版本的内容上
	pinned    *core.Content
	pinnedNum uint64

	// 最新版本内容对象的缓存
	cached *core.Content

	// 当前读取的内容及其最近一个 Chunk
	reader *exporter.Reader
}

// handle 取出句柄；卷关闭后统一返回 RepoClosed
func (v *Volume) handle(h engine.Handle) (*fileHandle, error) {
	v.mu.RLock()
	closed := v.closed
	v.mu.RUnlock()
	if closed {
		return nil, fserr.ErrRepoClosed
	}
	return v.handles.get(h)
}

// fileNode 查找路径对应的文件节点
func (v *Volume) fileNode(p vpath.Path) (*namespace.Node, error) {
	n, err := v.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, fserr.New(fserr.CodeIsDir, "%s is a directory", p)
	}
	return n, nil
}

func (v *Volume) loadContent(ctx context.Context, entry core.VersionEntry) (*core.Content, error) {
	content, err := v.exp.LoadContent(ctx, entry.Content.Hash)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeIo, err, "load version %d", entry.Num)
	}
	return content, nil
}

// latest 返回文件当前版本的内容对象
func (v *Volume) latest(ctx context.Context, fh *fileHandle) (*core.Content, error) {
	n, err := v.fileNode(fh.path)
	if err != nil {
		return nil, err
	}
	entry, ok := n.File().Latest()
	if !ok {
		return nil, fserr.New(fserr.CodeNoVersion, "%s has no version", fh.path)
	}
	if fh.cached != nil && fh.cached.ID() == entry.Content.Hash {
		return fh.cached, nil
	}
	content, err := v.loadContent(ctx, entry)
	if err != nil {
		return nil, err
	}
	fh.cached = content
	return content, nil
}

func (v *Volume) readAll(ctx context.Context, content *core.Content) ([]byte, error) {
	data, err := v.exp.ReadAll(ctx, content)
	if err != nil {
		return nil, fserr.Wrap(fserr.CodeIo, err, "read content %s", content.ID().Short())
	}
	return data, nil
}

// commitVersion 把 content 作为新版本提交到 fh 对应的文件
func (v *Volume) commitVersion(ctx context.Context, fh *fileHandle, content *core.Content) error {
	name := fh.path.FileName()
	err := v.mutate(ctx, "write "+fh.path.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		n, err := namespace.Lookup(root, fh.path)
		if err != nil {
			return nil, err
		}
		if n.IsDir() {
			return nil, fserr.New(fserr.CodeIsDir, "%s is a directory", fh.path)
		}
		entry := core.VersionEntry{
			Len:       content.TotalSize,
			CreatedAt: now,
			Content:   core.NewLink(content.ID()),
		}
		st, evicted := n.File().Commit(entry, fh.versionLimit)
		logEvicted(fh.path, evicted)
		return namespace.Update(root, fh.path.Parent(), now, func(e *namespace.Editor) error {
			e.Put(name, n.WithFile(st, now))
			return nil
		})
	})
	if err != nil {
		return err
	}
	fh.cached = content
	return nil
}

// OpenFile 打开文件。opts 应该已经 Normalize 过
func (v *Volume) OpenFile(ctx context.Context, p vpath.Path, opts engine.FileOptions) (engine.Handle, error) {
	opts = opts.Normalize()
	if !opts.Read && !opts.Write {
		return engine.Handle{}, fserr.New(fserr.CodeInvalidArgument, "neither read nor write access requested")
	}
	if opts.Write && v.readOnly {
		return engine.Handle{}, fserr.New(fserr.CodeReadOnly, "repo is opened read-only")
	}
	if p.IsRoot() {
		return engine.Handle{}, fserr.New(fserr.CodeIsDir, "%s is a directory", p)
	}

	// 1. 需要时创建，新文件的第 1 个版本是空内容
	if opts.Create {
		name, err := entryName(p)
		if err != nil {
			return engine.Handle{}, err
		}
		err = v.mutate(ctx, "create file "+p.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
			n, err := namespace.Lookup(root, p)
			if err == nil {
				if n.IsDir() {
					return nil, fserr.New(fserr.CodeIsDir, "%s is a directory", p)
				}
				if opts.CreateNew {
					return nil, fserr.New(fserr.CodeAlreadyExists, "%s already exists", p)
				}
				return root, nil
			}
			if fserr.CodeOf(err) != fserr.CodeNotFound {
				return nil, err
			}

			limit := opts.VersionLimit
			if limit == 0 {
				limit = v.super.VersionLimit
			}
			st := namespace.FileState{VersionLimit: limit, Dedup: opts.DedupChunk}
			st, _ = st.Commit(core.VersionEntry{CreatedAt: now, Content: core.NewLink(v.empty.ID())}, 0)
			return namespace.Update(root, p.Parent(), now, func(e *namespace.Editor) error {
				e.Put(name, namespace.NewFile(st, now))
				return nil
			})
		})
		if err != nil {
			return engine.Handle{}, err
		}
	}

	// 2. 文件必须存在
	n, err := v.fileNode(p)
	if err != nil {
		return engine.Handle{}, err
	}

	fh := &fileHandle{
		path:         p,
		read:         opts.Read,
		write:        opts.Write,
		append:       opts.Append,
		versionLimit: opts.VersionLimit,
		dedup:        opts.DedupChunk,
	}

	// 3. Truncate：非空文件提交一个空版本
	if opts.Truncate {
		if latest, ok := n.File().Latest(); ok && latest.Len > 0 {
			if err := v.commitVersion(ctx, fh, v.empty); err != nil {
				return engine.Handle{}, err
			}
		}
	}
	return v.handles.insert(fh), nil
}

// OpenVersion 打开一个固定在版本 num 上的只读句柄
func (v *Volume) OpenVersion(ctx context.Context, h engine.Handle, num uint64) (engine.Handle, error) {
	fh, err := v.handle(h)
	if err != nil {
		return engine.Handle{}, err
	}
	fh.mu.Lock()
	path := fh.path
	fh.mu.Unlock()

	n, err := v.fileNode(path)
	if err != nil {
		return engine.Handle{}, err
	}
	entry, ok := n.File().Find(num)
	if !ok {
		return engine.Handle{}, fserr.New(fserr.CodeNoVersion, "%s has no version %d", path, num)
	}
	content, err := v.loadContent(ctx, entry)
	if err != nil {
		return engine.Handle{}, err
	}
	return v.handles.insert(&fileHandle{
		path:      path,
		read:      true,
		pinned:    content,
		pinnedNum: num,
	}), nil
}

func checkWritable(fh *fileHandle) error {
	if fh.pinned != nil || !fh.write {
		return fserr.New(fserr.CodeCannotWrite, "%s is not opened for writing", fh.path)
	}
	return nil
}

// checkLen 检查在 pos 处写入 n 字节后不超过 MaxFileLen
func checkLen(p vpath.Path, pos, n int64) error {
	if pos > engine.MaxFileLen || n > engine.MaxFileLen-pos {
		return fserr.New(fserr.CodeInvalidArgument, "write of %d bytes at %d in %s exceeds limit %d", n, pos, p, engine.MaxFileLen)
	}
	return nil
}

// Write 把 p 写入缓冲区的游标位置；游标超过末尾时中间补零
func (v *Volume) Write(ctx context.Context, h engine.Handle, p []byte) (int, error) {
	fh, err := v.handle(h)
	if err != nil {
		return 0, err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if err := checkWritable(fh); err != nil {
		return 0, err
	}

	if !fh.dirty {
		content, err := v.latest(ctx, fh)
		if err != nil {
			return 0, err
		}
		base, err := v.readAll(ctx, content)
		if err != nil {
			return 0, err
		}
		fh.pending = base
		fh.dirty = true
	}
	if fh.append {
		fh.pos = int64(len(fh.pending))
	}
	if err := checkLen(fh.path, fh.pos, int64(len(p))); err != nil {
		return 0, err
	}

	end := fh.pos + int64(len(p))
	if grow := end - int64(len(fh.pending)); grow > 0 {
		fh.pending = append(fh.pending, make([]byte, grow)...)
	}
	copy(fh.pending[fh.pos:], p)
	fh.pos = end
	return len(p), nil
}

// Finish 把缓冲区提交为新版本；没有待提交数据时什么都不做
// 失败时缓冲区保留，可以重试
func (v *Volume) Finish(ctx context.Context, h engine.Handle) error {
	fh, err := v.handle(h)
	if err != nil {
		return err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if err := checkWritable(fh); err != nil {
		return err
	}
	if !fh.dirty {
		return nil
	}

	content, err := v.ing.Ingest(ctx, fh.pending, fh.dedup)
	if err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "store content of %s", fh.path)
	}
	if err := v.commitVersion(ctx, fh, content); err != nil {
		return err
	}
	fh.pending = nil
	fh.dirty = false
	return nil
}

// SetLen 以最新版本为基础截断或补零，直接提交为新版本
func (v *Volume) SetLen(ctx context.Context, h engine.Handle, size int64) error {
	if size < 0 {
		return fserr.New(fserr.CodeInvalidArgument, "negative length %d", size)
	}
	if size > engine.MaxFileLen {
		return fserr.New(fserr.CodeInvalidArgument, "length %d exceeds limit %d", size, engine.MaxFileLen)
	}
	fh, err := v.handle(h)
	if err != nil {
		return err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if err := checkWritable(fh); err != nil {
		return err
	}
	if fh.dirty {
		return fserr.New(fserr.CodeNotFinish, "%s has pending writes", fh.path)
	}

	content, err := v.latest(ctx, fh)
	if err != nil {
		return err
	}
	data, err := v.readAll(ctx, content)
	if err != nil {
		return err
	}
	if size <= int64(len(data)) {
		data = data[:size]
	} else {
		data = append(data, make([]byte, size-int64(len(data)))...)
	}

	next, err := v.ing.Ingest(ctx, data, fh.dedup)
	if err != nil {
		return fserr.Wrap(fserr.CodeIo, err, "store content of %s", fh.path)
	}
	return v.commitVersion(ctx, fh, next)
}

// Read 从游标位置读取已提交的内容；到达末尾返回 io.EOF
func (v *Volume) Read(ctx context.Context, h engine.Handle, p []byte) (int, error) {
	fh, err := v.handle(h)
	if err != nil {
		return 0, err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if !fh.read {
		return 0, fserr.New(fserr.CodeCannotRead, "%s is not opened for reading", fh.path)
	}

	content := fh.pinned
	if content == nil {
		if content, err = v.latest(ctx, fh); err != nil {
			return 0, err
		}
	}
	if fh.reader == nil || fh.reader.Content() != content {
		fh.reader = v.exp.NewReader(content)
	}
	n, err := fh.reader.ReadAt(ctx, p, fh.pos)
	fh.pos += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, fserr.Wrap(fserr.CodeIo, err, "read %s", fh.path)
	}
	return n, err
}

// Seek 移动游标，允许超过末尾
func (v *Volume) Seek(ctx context.Context, h engine.Handle, off int64, whence int) (int64, error) {
	fh, err := v.handle(h)
	if err != nil {
		return 0, err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()

	var base int64
	switch whence {
	case engine.SeekStart:
	case engine.SeekCurrent:
		base = fh.pos
	case engine.SeekEnd:
		switch {
		case fh.pinned != nil:
			base = fh.pinned.TotalSize
		case fh.dirty:
			base = int64(len(fh.pending))
		default:
			n, err := v.fileNode(fh.path)
			if err != nil {
				return 0, err
			}
			if latest, ok := n.File().Latest(); ok {
				base = latest.Len
			}
		}
	default:
		return 0, fserr.New(fserr.CodeInvalidArgument, "invalid whence %d", whence)
	}

	if off > 0 && base > math.MaxInt64-off {
		return 0, fserr.New(fserr.CodeInvalidArgument, "seek offset %d overflows", off)
	}
	pos := base + off
	if pos < 0 {
		return 0, fserr.New(fserr.CodeInvalidArgument, "seek to negative position %d", pos)
	}
	fh.pos = pos
	return pos, nil
}

func (v *Volume) handlePath(h engine.Handle) (vpath.Path, error) {
	fh, err := v.handle(h)
	if err != nil {
		return vpath.Path{}, err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	return fh.path, nil
}

func (v *Volume) FileMetadata(ctx context.Context, h engine.Handle) (engine.Metadata, error) {
	p, err := v.handlePath(h)
	if err != nil {
		return engine.Metadata{}, err
	}
	return v.Metadata(ctx, p)
}

func (v *Volume) FileHistory(ctx context.Context, h engine.Handle) ([]engine.Version, error) {
	p, err := v.handlePath(h)
	if err != nil {
		return nil, err
	}
	return v.History(ctx, p)
}

func (v *Volume) CurrVersion(ctx context.Context, h engine.Handle) (uint64, error) {
	p, err := v.handlePath(h)
	if err != nil {
		return 0, err
	}
	n, err := v.fileNode(p)
	if err != nil {
		return 0, err
	}
	return n.File().CurrVersion, nil
}

// Release 释放句柄。卷关闭后句柄已被统一回收，这里什么都不做
func (v *Volume) Release(h engine.Handle) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.closed {
		return
	}
	v.handles.release(h)
}
