// Package vpath implements absolute, slash separated paths inside a repo.
//
// A Path is a value type. Pure methods (Parent, Join, ...) return new values;
// the mutators Push, Pop, SetFileName and SetExtension take a pointer
// receiver and replace the internal string in place.
package vpath

import (
	"strings"

	"vaultfs/pkg/fserr"
)

const (
	Separator = "/"
	rootStr   = "/"
)

// Path 是归一化后的绝对路径
// 零值表示“未提供路径”，只有 New / Root 能构造出合法值
type Path struct {
	s string
}

// Root returns "/".
func Root() Path { return Path{s: rootStr} }

// New validates s and returns its normalized form.
// Repeated separators and "." components are dropped, ".." is kept literally.
func New(s string) (Path, error) {
	if s == "" {
		return Path{}, fserr.New(fserr.CodeInvalidPath, "path is empty")
	}
	if !strings.HasPrefix(s, Separator) {
		return Path{}, fserr.New(fserr.CodeInvalidPath, "path %q is not absolute", s)
	}
	return Path{s: build(split(s))}, nil
}

// MustNew is New for literals; it panics on an invalid path.
func MustNew(s string) Path {
	p, err := New(s)
	if err != nil {
		panic(err)
	}
	return p
}

// split 拆分成非空组件，丢弃 "."
func split(s string) []string {
	parts := strings.Split(s, Separator)
	out := make([]string, 0, len(parts))
	for _, c := range parts {
		if c == "" || c == "." {
			continue
		}
		out = append(out, c)
	}
	return out
}

func build(segs []string) string {
	if len(segs) == 0 {
		return rootStr
	}
	return rootStr + strings.Join(segs, Separator)
}

func (p Path) segs() []string { return split(p.s) }

// IsZero reports whether p was never constructed.
func (p Path) IsZero() bool { return p.s == "" }

func (p Path) String() string { return p.s }

func (p Path) IsRoot() bool { return p.s == rootStr }

func (p Path) Equal(other Path) bool { return p.s == other.s }

// Parent drops the final component. The parent of root is root.
func (p Path) Parent() Path {
	segs := p.segs()
	if len(segs) == 0 {
		return Root()
	}
	return Path{s: build(segs[:len(segs)-1])}
}

// FileName returns the final component, or "" for root.
func (p Path) FileName() string {
	segs := p.segs()
	if len(segs) == 0 {
		return ""
	}
	last := segs[len(segs)-1]
	if last == ".." {
		return ""
	}
	return last
}

// matchPrefix 判断 base 的组件是否是 p 的整段前缀，返回剩余组件
func (p Path) matchPrefix(base string) ([]string, bool) {
	segs := p.segs()
	if base == "" {
		return nil, true
	}
	// 相对路径的 base 永远不可能是绝对路径的前缀
	if !strings.HasPrefix(base, Separator) {
		return nil, false
	}
	bs := split(base)
	if len(bs) > len(segs) {
		return nil, false
	}
	for i := range bs {
		if bs[i] != segs[i] {
			return nil, false
		}
	}
	return segs[len(bs):], true
}

// StripPrefix removes base as a whole-component prefix and returns the
// relative rest. ok is false when base is not a prefix of p.
func (p Path) StripPrefix(base string) (rest string, ok bool) {
	if base == "" {
		return p.s, true
	}
	left, ok := p.matchPrefix(base)
	if !ok {
		return "", false
	}
	return strings.Join(left, Separator), true
}

// StartsWith matches whole components only; "" is a prefix of every path.
func (p Path) StartsWith(base string) bool {
	_, ok := p.matchPrefix(base)
	return ok
}

// EndsWith matches whole components only. An absolute child must equal p.
func (p Path) EndsWith(child string) bool {
	if child == "" {
		return true
	}
	segs := p.segs()
	cs := split(child)
	if strings.HasPrefix(child, Separator) {
		if len(cs) != len(segs) {
			return false
		}
	} else if len(cs) > len(segs) || len(cs) == 0 {
		return false
	}
	off := len(segs) - len(cs)
	for i := range cs {
		if cs[i] != segs[off+i] {
			return false
		}
	}
	return true
}

// stemExt 按最后一个点切分; ".bashrc" 这种只有前导点的名字没有扩展名
func stemExt(name string) (string, string) {
	if name == "" || name == ".." {
		return name, ""
	}
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

func (p Path) FileStem() string {
	stem, _ := stemExt(p.FileName())
	return stem
}

func (p Path) Extension() string {
	_, ext := stemExt(p.FileName())
	return ext
}

// Join returns a new path with other appended as relative components.
// An absolute-looking other is appended too; it never replaces p.
func (p Path) Join(other string) Path {
	segs := append(p.segs(), split(other)...)
	return Path{s: build(segs)}
}

// Push appends other in place. An absolute other replaces the whole path;
// an empty other is a no-op.
func (p *Path) Push(other string) {
	if other == "" {
		return
	}
	if strings.HasPrefix(other, Separator) {
		p.s = build(split(other))
		return
	}
	p.s = build(append(p.segs(), split(other)...))
}

// Pop removes the final component. It returns false at root.
func (p *Path) Pop() bool {
	segs := p.segs()
	if len(segs) == 0 {
		return false
	}
	p.s = build(segs[:len(segs)-1])
	return true
}

// SetFileName replaces the final component; at root it appends.
func (p *Path) SetFileName(name string) {
	if p.FileName() != "" {
		p.Pop()
	}
	p.Push(name)
}

// SetExtension replaces the extension of the final component; an empty ext
// removes it. No-op at root.
func (p *Path) SetExtension(ext string) {
	name := p.FileName()
	if name == "" {
		return
	}
	stem, _ := stemExt(name)
	if ext != "" {
		stem += "." + ext
	}
	p.SetFileName(stem)
}

// Components returns the root marker followed by each segment.
func (p Path) Components() []string {
	return append([]string{rootStr}, p.segs()...)
}
