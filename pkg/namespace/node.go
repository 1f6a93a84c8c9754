// Package namespace is the in-memory, copy-on-write directory tree of a volume.
//
// A published Node is never mutated. Every change clones the spine from the
// root down to the edited directory and yields a new root; the old root stays
// valid for readers until the new one has been persisted and swapped in.
package namespace

import (
	"slices"

	"vaultfs/pkg/core"
	"vaultfs/pkg/fserr"
	"vaultfs/pkg/types"
	"vaultfs/pkg/vpath"
)

// FileState 是文件节点的版本信息
type FileState struct {
	CurrVersion  uint64
	VersionLimit uint8
	Dedup        bool
	Versions     []core.VersionEntry // 按版本号升序
}

// Latest 返回当前版本
func (s FileState) Latest() (core.VersionEntry, bool) {
	if len(s.Versions) == 0 {
		return core.VersionEntry{}, false
	}
	return s.Versions[len(s.Versions)-1], true
}

// Find 按版本号查找一个保留下来的版本
func (s FileState) Find(num uint64) (core.VersionEntry, bool) {
	for _, v := range s.Versions {
		if v.Num == num {
			return v, true
		}
	}
	return core.VersionEntry{}, false
}

// Commit 追加一个新版本并按 FIFO 淘汰超出上限的旧版本
func (s FileState) Commit(entry core.VersionEntry, limit uint8) (FileState, []core.VersionEntry) {
	if limit == 0 {
		limit = s.VersionLimit
	}
	if limit == 0 {
		limit = 1
	}
	s.CurrVersion++
	entry.Num = s.CurrVersion
	s.VersionLimit = limit

	versions := append(slices.Clone(s.Versions), entry)
	var evicted []core.VersionEntry
	if over := len(versions) - int(limit); over > 0 {
		evicted = versions[:over]
		versions = versions[over:]
	}
	s.Versions = versions
	return s, evicted
}

// Node 是目录树中的一个节点 (目录或文件)
type Node struct {
	kind       core.EntryType
	createdAt  int64
	modifiedAt int64

	// 目录: 子节点按创建顺序排列
	names    []string
	children map[string]*Node

	// 文件
	file FileState

	// 已持久化的对象 ID；新建或修改过的节点为空
	id types.Hash
}

// NewDir 创建一个空目录节点
func NewDir(now int64) *Node {
	return &Node{
		kind:       core.EntryDir,
		createdAt:  now,
		modifiedAt: now,
		children:   map[string]*Node{},
	}
}

// NewFile 创建一个文件节点
func NewFile(state FileState, now int64) *Node {
	return &Node{
		kind:       core.EntryFile,
		createdAt:  now,
		modifiedAt: now,
		file:       state,
	}
}

func (n *Node) IsDir() bool       { return n.kind == core.EntryDir }
func (n *Node) IsFile() bool      { return n.kind == core.EntryFile }
func (n *Node) CreatedAt() int64  { return n.createdAt }
func (n *Node) ModifiedAt() int64 { return n.modifiedAt }
func (n *Node) ID() types.Hash    { return n.id }

// File 返回文件状态的副本
func (n *Node) File() FileState {
	s := n.file
	s.Versions = slices.Clone(n.file.Versions)
	return s
}

// Names 返回子节点名字 (创建顺序)
func (n *Node) Names() []string { return slices.Clone(n.names) }

func (n *Node) Len() int { return len(n.names) }

func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// WithFile 返回替换了文件状态的新节点
func (n *Node) WithFile(state FileState, now int64) *Node {
	c := *n
	c.file = state
	c.modifiedAt = now
	c.id = ""
	return &c
}

// clone 复制一个目录节点，结果是可修改的
func (n *Node) clone() *Node {
	c := *n
	c.names = slices.Clone(n.names)
	c.children = make(map[string]*Node, len(n.children))
	for k, v := range n.children {
		c.children[k] = v
	}
	c.id = ""
	return &c
}

// Lookup 沿路径查找节点
func Lookup(root *Node, p vpath.Path) (*Node, error) {
	cur := root
	for _, seg := range p.Components()[1:] {
		if !cur.IsDir() {
			return nil, fserr.New(fserr.CodeNotDir, "%s: a component is not a directory", p)
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil, fserr.New(fserr.CodeNotFound, "%s: not found", p)
		}
		cur = next
	}
	return cur, nil
}

// Editor 用于在 Update 回调里修改一个 (已经复制过的) 目录
type Editor struct {
	dir *Node
	now int64
}

func (e *Editor) Get(name string) (*Node, bool) { return e.dir.Child(name) }

// Put 插入或替换子节点；替换时保留原来的位置
func (e *Editor) Put(name string, child *Node) {
	if _, ok := e.dir.children[name]; !ok {
		e.dir.names = append(e.dir.names, name)
	}
	e.dir.children[name] = child
	e.dir.modifiedAt = e.now
}

// Remove 删除子节点，返回被删除的节点
func (e *Editor) Remove(name string) (*Node, bool) {
	child, ok := e.dir.children[name]
	if !ok {
		return nil, false
	}
	delete(e.dir.children, name)
	e.dir.names = slices.DeleteFunc(e.dir.names, func(s string) bool { return s == name })
	e.dir.modifiedAt = e.now
	return child, true
}

// Update 复制从根到 dir 的整条路径，在副本上执行 fn，返回新的根
// fn 返回错误时旧的根不受任何影响
func Update(root *Node, dir vpath.Path, now int64, fn func(e *Editor) error) (*Node, error) {
	segs := dir.Components()[1:]
	newRoot := root.clone()
	cur := newRoot
	for _, seg := range segs {
		child, ok := cur.children[seg]
		if !ok {
			return nil, fserr.New(fserr.CodeNotFound, "%s: not found", dir)
		}
		if !child.IsDir() {
			return nil, fserr.New(fserr.CodeNotDir, "%s: not a directory", dir)
		}
		c := child.clone()
		cur.children[seg] = c
		cur = c
	}
	if err := fn(&Editor{dir: cur, now: now}); err != nil {
		return nil, err
	}
	return newRoot, nil
}

// Walk 先序遍历 n 下的全部节点；rel 是相对 n 的路径片段
func Walk(n *Node, fn func(rel []string, node *Node) error) error {
	return walk(n, nil, fn)
}

func walk(n *Node, rel []string, fn func(rel []string, node *Node) error) error {
	if err := fn(rel, n); err != nil {
		return err
	}
	if !n.IsDir() {
		return nil
	}
	for _, name := range n.names {
		if err := walk(n.children[name], append(slices.Clone(rel), name), fn); err != nil {
			return err
		}
	}
	return nil
}
