package services

import "sync"

// repoLocks serializes reconciliation passes per repository, so a nightly
// full sync and a webhook-triggered structure sync for the same repo cannot
// interleave their upserts and pruning diffs.
type repoLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newRepoLocks() *repoLocks {
	return &repoLocks{locks: make(map[int64]*sync.Mutex)}
}

// lock acquires the mutex for repoID and returns its unlock func.
func (rl *repoLocks) lock(repoID int64) func() {
	rl.mu.Lock()
	m, ok := rl.locks[repoID]
	if !ok {
		m = &sync.Mutex{}
		rl.locks[repoID] = m
	}
	rl.mu.Unlock()

	m.Lock()
	return m.Unlock
}
