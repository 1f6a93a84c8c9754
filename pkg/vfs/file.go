package vfs

import (
	"context"
	"io"

	"vaultfs/pkg/engine"
	"vaultfs/pkg/resource"
)

// handle 是 File 和 VersionReader 共用的部分：持有一个引擎句柄
type handle struct {
	// 引用 Repo，保证句柄存活期间仓库不会被回收关闭
	repo *Repo
	vol  engine.Volume
	path Path
	g    *resource.Guard[engine.Handle]
}

func newHandle(repo *Repo, vol engine.Volume, p Path, h engine.Handle, name string) handle {
	release := func(h engine.Handle) error {
		vol.Release(h)
		return nil
	}
	return handle{repo: repo, vol: vol, path: p, g: resource.New(name+" "+p.String(), h, release)}
}

func (h *handle) Path() Path { return h.path }

func (h *handle) read(p []byte) (int, error) {
	eh, err := h.g.Get()
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return h.vol.Read(context.Background(), eh, p)
}

func (h *handle) seek(offset int64, whence int) (int64, error) {
	eh, err := h.g.Get()
	if err != nil {
		return 0, err
	}
	return h.vol.Seek(context.Background(), eh, offset, whence)
}

func (h *handle) readAll(r io.Reader) ([]byte, error) {
	if _, err := h.g.Get(); err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// File 是一个打开的文件。读写共用一个游标；写入先进入缓冲区，
// Finish 之后才成为新版本，读总是读最新提交的版本
type File struct {
	handle
}

var (
	_ io.Reader = (*File)(nil)
	_ io.Writer = (*File)(nil)
	_ io.Seeker = (*File)(nil)
	_ io.Closer = (*File)(nil)
)

func newFile(repo *Repo, vol engine.Volume, p Path, h engine.Handle) *File {
	return &File{handle: newHandle(repo, vol, p, h, "file")}
}

// Read 从游标处读取最新提交的版本，末尾返回 io.EOF
func (f *File) Read(p []byte) (int, error) { return f.read(p) }

// ReadAll 从游标处读到末尾
func (f *File) ReadAll() ([]byte, error) { return f.readAll(f) }

// Write 把 p 写入缓冲区；不产生新版本
func (f *File) Write(p []byte) (int, error) {
	eh, err := f.g.Get()
	if err != nil {
		return 0, err
	}
	return f.vol.Write(context.Background(), eh, p)
}

// Finish 把缓冲区提交为新版本
func (f *File) Finish() error {
	eh, err := f.g.Get()
	if err != nil {
		return err
	}
	return f.vol.Finish(context.Background(), eh)
}

// WriteOnce 等同于 Write(p) 后 Finish()
func (f *File) WriteOnce(p []byte) error {
	if _, err := f.Write(p); err != nil {
		return err
	}
	return f.Finish()
}

// WriteFrom 把 r 的全部内容写入并提交为一个版本
func (f *File) WriteFrom(r io.Reader) (int64, error) {
	n, err := io.Copy(struct{ io.Writer }{f}, r)
	if err != nil {
		return n, err
	}
	return n, f.Finish()
}

// Seek 移动游标，whence 同 io.SeekStart / io.SeekCurrent / io.SeekEnd
func (f *File) Seek(offset int64, whence int) (int64, error) { return f.seek(offset, whence) }

// SetLen 以最新版本为基础截断或补零，直接提交为新版本
func (f *File) SetLen(size int64) error {
	eh, err := f.g.Get()
	if err != nil {
		return err
	}
	return f.vol.SetLen(context.Background(), eh, size)
}

func (f *File) Metadata() (Metadata, error) {
	eh, err := f.g.Get()
	if err != nil {
		return Metadata{}, err
	}
	return f.vol.FileMetadata(context.Background(), eh)
}

// History 返回保留下来的版本，按版本号升序
func (f *File) History() ([]Version, error) {
	eh, err := f.g.Get()
	if err != nil {
		return nil, err
	}
	return f.vol.FileHistory(context.Background(), eh)
}

// CurrVersion 返回最新的版本号
func (f *File) CurrVersion() (uint64, error) {
	eh, err := f.g.Get()
	if err != nil {
		return 0, err
	}
	return f.vol.CurrVersion(context.Background(), eh)
}

// VersionReader 打开版本 num 的只读视图，之后的写入不会影响它
func (f *File) VersionReader(num uint64) (*VersionReader, error) {
	eh, err := f.g.Get()
	if err != nil {
		return nil, err
	}
	vh, err := f.vol.OpenVersion(context.Background(), eh, num)
	if err != nil {
		return nil, err
	}
	return &VersionReader{handle: newHandle(f.repo, f.vol, f.path, vh, "version"), num: num}, nil
}

// Close 释放句柄并丢弃未提交的写入。可以重复调用，总是返回 nil
func (f *File) Close() error {
	f.g.Close()
	return nil
}

// VersionReader 固定在文件的一个历史版本上，有自己独立的游标
type VersionReader struct {
	handle
	num uint64
}

var (
	_ io.Reader = (*VersionReader)(nil)
	_ io.Seeker = (*VersionReader)(nil)
	_ io.Closer = (*VersionReader)(nil)
)

// Num 返回读取器对应的版本号
func (r *VersionReader) Num() uint64 { return r.num }

func (r *VersionReader) Read(p []byte) (int, error) { return r.read(p) }

func (r *VersionReader) ReadAll() ([]byte, error) { return r.readAll(r) }

func (r *VersionReader) Seek(offset int64, whence int) (int64, error) { return r.seek(offset, whence) }

// Close 可以重复调用，总是返回 nil
func (r *VersionReader) Close() error {
	r.g.Close()
	return nil
}
