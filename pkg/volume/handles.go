package volume

import (
	"fmt"
	"sync"

	"vaultfs/pkg/engine"
	"vaultfs/pkg/fserr"
)

type slot struct {
	gen uint32
	fh  *fileHandle // nil 表示空闲
}

// arena 是带代数 (generation) 的句柄表
// 释放后槽位可以复用，但 Gen 会增加，旧句柄因此失效
type arena struct {
	mu    sync.Mutex
	slots []slot
	free  []uint32
}

func (a *arena) insert(fh *fileHandle) engine.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	s.gen++
	s.fh = fh
	return engine.Handle{Index: idx, Gen: s.gen}
}

// get 返回句柄对应的文件；已释放的句柄返回 Closed
func (a *arena) get(h engine.Handle) (*fileHandle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(h.Index) >= len(a.slots) {
		return nil, fserr.New(fserr.CodeClosed, "%s is not valid", h)
	}
	s := a.slots[h.Index]
	if s.fh == nil || s.gen != h.Gen {
		return nil, fserr.New(fserr.CodeClosed, "%s is closed", h)
	}
	return s.fh, nil
}

// release 释放句柄；重复释放是程序错误
func (a *arena) release(h engine.Handle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(h.Index) >= len(a.slots) {
		panic(fmt.Sprintf("volume: release of unknown %s", h))
	}
	s := &a.slots[h.Index]
	if s.fh == nil || s.gen != h.Gen {
		panic(fmt.Sprintf("volume: double release of %s", h))
	}
	s.fh = nil
	a.free = append(a.free, h.Index)
}

// releaseAll 在卷关闭时清空句柄表
func (a *arena) releaseAll() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for i := range a.slots {
		if a.slots[i].fh != nil {
			a.slots[i].fh = nil
			a.free = append(a.free, uint32(i))
			n++
		}
	}
	return n
}
