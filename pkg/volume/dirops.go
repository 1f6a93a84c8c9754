package volume

import (
	"context"
	"strings"

	"vaultfs/pkg/core"
	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/logging"
	"vaultfs/pkg/namespace"
	"vaultfs/pkg/vpath"
)

// entryName 返回要新建 / 替换的条目名；根和 ".." 结尾的路径没有名字
func entryName(p vpath.Path) (string, error) {
	if p.IsRoot() {
		return "", fserr.New(fserr.CodeIsRoot, "%s is root", p)
	}
	name := p.FileName()
	if name == "" {
		return "", fserr.New(fserr.CodeInvalidPath, "%s has no file name", p)
	}
	return name, nil
}

func joinRel(base vpath.Path, rel []string) vpath.Path {
	if len(rel) == 0 {
		return base
	}
	return base.Join(strings.Join(rel, vpath.Separator))
}

func isNotFound(err error) bool {
	code := fserr.CodeOf(err)
	return code == fserr.CodeNotFound || code == fserr.CodeNotDir
}

func logEvicted(p vpath.Path, evicted []core.VersionEntry) {
	for _, e := range evicted {
		logging.Debug("version evicted",
			logging.String("path", p.String()),
			logging.Uint64("num", e.Num),
			logging.Int64("len", e.Len))
	}
}

func (v *Volume) lookup(p vpath.Path) (*namespace.Node, error) {
	var n *namespace.Node
	err := v.view(func(root *namespace.Node) error {
		var err error
		n, err = namespace.Lookup(root, p)
		return err
	})
	return n, err
}

func (v *Volume) PathExists(ctx context.Context, p vpath.Path) (bool, error) {
	_, err := v.lookup(p)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

func (v *Volume) IsFile(ctx context.Context, p vpath.Path) (bool, error) {
	n, err := v.lookup(p)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return n.IsFile(), nil
}

func (v *Volume) IsDir(ctx context.Context, p vpath.Path) (bool, error) {
	n, err := v.lookup(p)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return n.IsDir(), nil
}

func (v *Volume) Metadata(ctx context.Context, p vpath.Path) (engine.Metadata, error) {
	n, err := v.lookup(p)
	if err != nil {
		return engine.Metadata{}, err
	}
	return nodeMetadata(n), nil
}

func (v *Volume) History(ctx context.Context, p vpath.Path) ([]engine.Version, error) {
	n, err := v.lookup(p)
	if err != nil {
		return nil, err
	}
	if n.IsDir() {
		return nil, fserr.New(fserr.CodeIsDir, "%s is a directory", p)
	}
	return fileHistory(n.File()), nil
}

func (v *Volume) CreateDir(ctx context.Context, p vpath.Path) error {
	if p.IsRoot() {
		return fserr.New(fserr.CodeAlreadyExists, "%s already exists", p)
	}
	name, err := entryName(p)
	if err != nil {
		return err
	}
	return v.mutate(ctx, "create dir "+p.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		return namespace.Update(root, p.Parent(), now, func(e *namespace.Editor) error {
			if _, ok := e.Get(name); ok {
				return fserr.New(fserr.CodeAlreadyExists, "%s already exists", p)
			}
			e.Put(name, namespace.NewDir(now))
			return nil
		})
	})
}

// CreateDirAll 逐级创建缺失的目录；全部已存在时不产生提交
func (v *Volume) CreateDirAll(ctx context.Context, p vpath.Path) error {
	return v.mutate(ctx, "create dir all "+p.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		cur := root
		dir := vpath.Root()
		for _, seg := range p.Components()[1:] {
			next := dir.Join(seg)
			n, err := namespace.Lookup(cur, next)
			switch {
			case err == nil && n.IsDir():
			case err == nil:
				return nil, fserr.New(fserr.CodeNotDir, "%s is a file", next)
			case fserr.CodeOf(err) == fserr.CodeNotFound:
				if next.FileName() == "" {
					return nil, fserr.New(fserr.CodeInvalidPath, "%s has no file name", next)
				}
				cur, err = namespace.Update(cur, dir, now, func(e *namespace.Editor) error {
					e.Put(seg, namespace.NewDir(now))
					return nil
				})
				if err != nil {
					return nil, err
				}
			default:
				return nil, err
			}
			dir = next
		}
		return cur, nil
	})
}

// ReadDir 按创建顺序返回目录项
func (v *Volume) ReadDir(ctx context.Context, p vpath.Path) ([]engine.DirEntry, error) {
	n, err := v.lookup(p)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, fserr.New(fserr.CodeNotDir, "%s is not a directory", p)
	}
	names := n.Names()
	entries := make([]engine.DirEntry, 0, len(names))
	for _, name := range names {
		child, _ := n.Child(name)
		entries = append(entries, engine.DirEntry{
			Path:     p.Join(name),
			FileName: name,
			Metadata: nodeMetadata(child),
		})
	}
	return entries, nil
}

func (v *Volume) RemoveFile(ctx context.Context, p vpath.Path) error {
	if p.IsRoot() {
		return fserr.New(fserr.CodeIsDir, "%s is a directory", p)
	}
	name, err := entryName(p)
	if err != nil {
		return err
	}
	return v.mutate(ctx, "remove file "+p.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		return namespace.Update(root, p.Parent(), now, func(e *namespace.Editor) error {
			n, ok := e.Get(name)
			if !ok {
				return fserr.New(fserr.CodeNotFound, "%s not found", p)
			}
			if n.IsDir() {
				return fserr.New(fserr.CodeIsDir, "%s is a directory", p)
			}
			e.Remove(name)
			return nil
		})
	})
}

func (v *Volume) RemoveDir(ctx context.Context, p vpath.Path) error {
	return v.removeDir(ctx, p, false)
}

// RemoveDirAll 删除整棵子树。整棵树在一次提交里消失，不存在删了一半的状态
func (v *Volume) RemoveDirAll(ctx context.Context, p vpath.Path) error {
	return v.removeDir(ctx, p, true)
}

func (v *Volume) removeDir(ctx context.Context, p vpath.Path, recursive bool) error {
	name, err := entryName(p)
	if err != nil {
		return err
	}
	return v.mutate(ctx, "remove dir "+p.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		return namespace.Update(root, p.Parent(), now, func(e *namespace.Editor) error {
			n, ok := e.Get(name)
			if !ok {
				return fserr.New(fserr.CodeNotFound, "%s not found", p)
			}
			if !n.IsDir() {
				return fserr.New(fserr.CodeNotDir, "%s is not a directory", p)
			}
			if !recursive && n.Len() > 0 {
				return fserr.New(fserr.CodeNotEmpty, "%s is not empty", p)
			}
			e.Remove(name)
			return nil
		})
	})
}

// Rename 原子地移动条目，必要时替换目标
func (v *Volume) Rename(ctx context.Context, from, to vpath.Path) error {
	if from.Equal(to) {
		return v.view(func(*namespace.Node) error { return nil })
	}
	if from.IsRoot() || to.IsRoot() {
		return fserr.New(fserr.CodeIsRoot, "cannot rename root")
	}
	if to.StartsWith(from.String()) {
		return fserr.New(fserr.CodeInvalidArgument, "cannot move %s into itself (%s)", from, to)
	}
	fromName, err := entryName(from)
	if err != nil {
		return err
	}
	toName, err := entryName(to)
	if err != nil {
		return err
	}

	return v.mutate(ctx, "rename "+from.String()+" -> "+to.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		src, err := namespace.Lookup(root, from)
		if err != nil {
			return nil, err
		}
		dst, err := namespace.Lookup(root, to)
		switch {
		case err == nil:
			if src.IsFile() && dst.IsDir() {
				return nil, fserr.New(fserr.CodeIsDir, "%s is a directory", to)
			}
			if src.IsDir() && dst.IsFile() {
				return nil, fserr.New(fserr.CodeNotDir, "%s is not a directory", to)
			}
			if dst.IsDir() && dst.Len() > 0 {
				return nil, fserr.New(fserr.CodeNotEmpty, "%s is not empty", to)
			}
		case fserr.CodeOf(err) != fserr.CodeNotFound:
			return nil, err
		}

		// 1. 先摘下源条目
		r1, err := namespace.Update(root, from.Parent(), now, func(e *namespace.Editor) error {
			e.Remove(fromName)
			return nil
		})
		if err != nil {
			return nil, err
		}
		// 2. 再挂到目标位置
		return namespace.Update(r1, to.Parent(), now, func(e *namespace.Editor) error {
			e.Put(toName, src)
			return nil
		})
	})
}

// copyInto 把 src 的最新版本写到目录 e 下的 name
// 目标已存在时追加为新版本，否则新建一个以该内容为第 1 版的文件
func (v *Volume) copyInto(e *namespace.Editor, target vpath.Path, name string, src namespace.FileState, now int64) error {
	latest, ok := src.Latest()
	if !ok {
		return fserr.New(fserr.CodeNoVersion, "source of %s has no version", target)
	}
	entry := core.VersionEntry{Len: latest.Len, CreatedAt: now, Content: latest.Content}

	existing, ok := e.Get(name)
	if !ok {
		st := namespace.FileState{VersionLimit: v.super.VersionLimit, Dedup: src.Dedup}
		st, _ = st.Commit(entry, 0)
		e.Put(name, namespace.NewFile(st, now))
		return nil
	}
	if existing.IsDir() {
		return fserr.New(fserr.CodeIsDir, "%s is a directory", target)
	}
	st, evicted := existing.File().Commit(entry, 0)
	logEvicted(target, evicted)
	e.Put(name, existing.WithFile(st, now))
	return nil
}

// Copy 只复制文件
func (v *Volume) Copy(ctx context.Context, from, to vpath.Path) error {
	if from.Equal(to) {
		return v.view(func(*namespace.Node) error { return nil })
	}
	if to.IsRoot() {
		return fserr.New(fserr.CodeIsDir, "%s is a directory", to)
	}
	name, err := entryName(to)
	if err != nil {
		return err
	}
	return v.mutate(ctx, "copy "+from.String()+" -> "+to.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		src, err := namespace.Lookup(root, from)
		if err != nil {
			return nil, err
		}
		if src.IsDir() {
			return nil, fserr.New(fserr.CodeIsDir, "%s is a directory", from)
		}
		state := src.File()
		return namespace.Update(root, to.Parent(), now, func(e *namespace.Editor) error {
			return v.copyInto(e, to, name, state, now)
		})
	})
}

// CopyDirAll 把 from 整棵树合并进 to
// 先完整检查一遍类型冲突，有冲突时什么都不复制
func (v *Volume) CopyDirAll(ctx context.Context, from, to vpath.Path) error {
	if from.Equal(to) {
		return v.view(func(*namespace.Node) error { return nil })
	}
	if to.StartsWith(from.String()) {
		return fserr.New(fserr.CodeInvalidArgument, "cannot copy %s into itself (%s)", from, to)
	}

	return v.mutate(ctx, "copy dir all "+from.String()+" -> "+to.String(), func(root *namespace.Node, now int64) (*namespace.Node, error) {
		src, err := namespace.Lookup(root, from)
		if err != nil {
			return nil, err
		}
		if !src.IsDir() {
			return nil, fserr.New(fserr.CodeNotDir, "%s is not a directory", from)
		}
		if !to.IsRoot() {
			if _, err := entryName(to); err != nil {
				return nil, err
			}
			parent, err := namespace.Lookup(root, to.Parent())
			if err != nil {
				return nil, err
			}
			if !parent.IsDir() {
				return nil, fserr.New(fserr.CodeNotDir, "%s is not a directory", to.Parent())
			}
		}

		// 1. 预检
		err = namespace.Walk(src, func(rel []string, n *namespace.Node) error {
			target := joinRel(to, rel)
			dst, err := namespace.Lookup(root, target)
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return err
			}
			if n.IsDir() && dst.IsFile() {
				return fserr.New(fserr.CodeIsFile, "%s is a file", target)
			}
			if n.IsFile() && dst.IsDir() {
				return fserr.New(fserr.CodeIsDir, "%s is a directory", target)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		// 2. 按先序逐个合并，父目录总是先于子节点出现
		cur := root
		err = namespace.Walk(src, func(rel []string, n *namespace.Node) error {
			target := joinRel(to, rel)
			if n.IsDir() {
				if _, err := namespace.Lookup(cur, target); err == nil {
					return nil
				}
				next, err := namespace.Update(cur, target.Parent(), now, func(e *namespace.Editor) error {
					e.Put(target.FileName(), namespace.NewDir(now))
					return nil
				})
				if err != nil {
					return err
				}
				cur = next
				return nil
			}
			state := n.File()
			next, err := namespace.Update(cur, target.Parent(), now, func(e *namespace.Editor) error {
				return v.copyInto(e, target, target.FileName(), state, now)
			})
			if err != nil {
				return err
			}
			cur = next
			return nil
		})
		if err != nil {
			return nil, err
		}
		return cur, nil
	})
}
