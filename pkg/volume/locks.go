package volume

import (
	"sync"

	"vaultfs/pkg/fserr"
)

// 进程内的仓库锁表：同一个位置同一时刻只能被打开一次
var repoLocks = struct {
	mu   sync.Mutex
	held map[string]struct{}
}{held: map[string]struct{}{}}

func acquireLock(key string) error {
	repoLocks.mu.Lock()
	defer repoLocks.mu.Unlock()
	if _, ok := repoLocks.held[key]; ok {
		return fserr.New(fserr.CodeRepoOpened, "%s is opened by another handle", key)
	}
	repoLocks.held[key] = struct{}{}
	return nil
}

func releaseLock(key string) {
	repoLocks.mu.Lock()
	defer repoLocks.mu.Unlock()
	delete(repoLocks.held, key)
}

func isLocked(key string) bool {
	repoLocks.mu.Lock()
	defer repoLocks.mu.Unlock()
	_, ok := repoLocks.held[key]
	return ok
}
