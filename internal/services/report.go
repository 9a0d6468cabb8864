package services

import "time"

// ItemError records a single TOC node that failed during a sync pass
// without aborting its siblings.
type ItemError struct {
	UUID string
	Slug string
	Err  error
}

// RepoResult is the per-repository outcome of a sync pass. A non-nil Err
// means the pass for this repository failed as a whole; ItemErrors hold
// isolated per-node failures from an otherwise successful pass.
type RepoResult struct {
	RepoID     int64
	Name       string
	DocsSynced int
	DocsPruned int
	Purged     bool
	ItemErrors []ItemError
	Err        error
}

// SyncReport aggregates a full-sync run across all discovered repositories.
type SyncReport struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Principal  string
	Members    int
	Repos      []RepoResult
}

// Failed returns the results of repositories whose pass failed outright.
func (r *SyncReport) Failed() []RepoResult {
	var out []RepoResult
	for _, res := range r.Repos {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}
