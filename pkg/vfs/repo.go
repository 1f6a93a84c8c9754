package vfs

import (
	"context"
	"errors"

	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/resource"
)

var errNoPath = fserr.New(fserr.CodeInvalidArgument, "path is required")

// Repo 是一个打开的仓库。所有方法都可以并发调用
type Repo struct {
	g *resource.Guard[engine.Volume]
}

func newRepo(vol engine.Volume) *Repo {
	return &Repo{g: resource.New("repo", vol, func(v engine.Volume) error { return v.Close() })}
}

// vol 返回底层卷；Close 之后返回 RepoClosed
func (r *Repo) vol() (engine.Volume, error) {
	v, err := r.g.Get()
	if errors.Is(err, fserr.ErrClosed) {
		return nil, fserr.ErrRepoClosed
	}
	return v, err
}

// Close 关闭仓库并释放它打开的全部句柄。可以重复调用
func (r *Repo) Close() { r.g.Close() }

func (r *Repo) Info() (RepoInfo, error) {
	v, err := r.vol()
	if err != nil {
		return RepoInfo{}, err
	}
	return v.Info(), nil
}

// ResetPassword 校验旧口令并换成新口令，同时可以调整 KDF 代价
func (r *Repo) ResetPassword(oldPwd, newPwd string, ops, mem Cost) error {
	v, err := r.vol()
	if err != nil {
		return err
	}
	return v.ResetPassword(context.Background(), oldPwd, newPwd, ops, mem)
}

// query 是路径查询的公共部分
func query[T any](r *Repo, p Path, fn func(context.Context, engine.Volume, Path) (T, error)) (T, error) {
	var zero T
	if err := checkPaths(p); err != nil {
		return zero, err
	}
	v, err := r.vol()
	if err != nil {
		return zero, err
	}
	return fn(context.Background(), v, p)
}

func (r *Repo) PathExists(p Path) (bool, error) {
	return query(r, p, func(ctx context.Context, v engine.Volume, p Path) (bool, error) { return v.PathExists(ctx, p) })
}

func (r *Repo) IsFile(p Path) (bool, error) {
	return query(r, p, func(ctx context.Context, v engine.Volume, p Path) (bool, error) { return v.IsFile(ctx, p) })
}

func (r *Repo) IsDir(p Path) (bool, error) {
	return query(r, p, func(ctx context.Context, v engine.Volume, p Path) (bool, error) { return v.IsDir(ctx, p) })
}

func (r *Repo) Metadata(p Path) (Metadata, error) {
	return query(r, p, func(ctx context.Context, v engine.Volume, p Path) (Metadata, error) { return v.Metadata(ctx, p) })
}

// History 返回保留下来的版本，按版本号升序
func (r *Repo) History(p Path) ([]Version, error) {
	return query(r, p, func(ctx context.Context, v engine.Volume, p Path) ([]Version, error) { return v.History(ctx, p) })
}

// ReadDir 按创建顺序返回目录项
func (r *Repo) ReadDir(p Path) ([]DirEntry, error) {
	return query(r, p, func(ctx context.Context, v engine.Volume, p Path) ([]DirEntry, error) { return v.ReadDir(ctx, p) })
}

func (r *Repo) apply(fn func(context.Context, engine.Volume) error, paths ...Path) error {
	if err := checkPaths(paths...); err != nil {
		return err
	}
	v, err := r.vol()
	if err != nil {
		return err
	}
	return fn(context.Background(), v)
}

// CreateDir 创建目录；父目录必须存在
func (r *Repo) CreateDir(p Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.CreateDir(ctx, p) }, p)
}

// CreateDirAll 创建目录和所有缺失的上级目录
func (r *Repo) CreateDirAll(p Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.CreateDirAll(ctx, p) }, p)
}

func (r *Repo) RemoveFile(p Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.RemoveFile(ctx, p) }, p)
}

// RemoveDir 删除空目录
func (r *Repo) RemoveDir(p Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.RemoveDir(ctx, p) }, p)
}

// RemoveDirAll 删除目录及其下的一切
func (r *Repo) RemoveDirAll(p Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.RemoveDirAll(ctx, p) }, p)
}

// Copy 用 from 的内容覆盖 to (两者都是文件)。from 与 to 相同时什么都不做
func (r *Repo) Copy(from, to Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.Copy(ctx, from, to) }, from, to)
}

// CopyDirAll 把 from 目录树合并到 to：同名文件被覆盖，其它保留
func (r *Repo) CopyDirAll(from, to Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.CopyDirAll(ctx, from, to) }, from, to)
}

// Rename 原子地移动 from 到 to，to 已存在时被替换
func (r *Repo) Rename(from, to Path) error {
	return r.apply(func(ctx context.Context, v engine.Volume) error { return v.Rename(ctx, from, to) }, from, to)
}

// Move 同 Rename
func (r *Repo) Move(from, to Path) error { return r.Rename(from, to) }

// CreateFile 创建文件 (已存在则截断)，以读写方式打开
func (r *Repo) CreateFile(p Path) (*File, error) {
	return NewOpenOptions().Write(true).Create(true).Truncate(true).Open(r, p)
}

// OpenFile 以只读方式打开已有文件
func (r *Repo) OpenFile(p Path) (*File, error) {
	return NewOpenOptions().Open(r, p)
}
