package webhook

import "sync"

type workflowRun struct {
	workflowID int64
	headBranch string
}

// WorkflowRunStore tracks CI workflow runs that failed and have not
// succeeded since, so that success notifications only go out when they
// announce a recovery. One coarse lock guards the whole structure;
// webhook traffic is nowhere near the point where that matters.
//
// Records are never evicted: a workflow that keeps failing holds one
// record until a matching success arrives or the process exits.
type WorkflowRunStore struct {
	mu   sync.Mutex
	runs map[string][]workflowRun
}

func NewWorkflowRunStore() *WorkflowRunStore {
	return &WorkflowRunStore{runs: make(map[string][]workflowRun)}
}

// RecordFailure stores a failed run for the repository. Recording the
// same (workflow, branch) pair twice keeps a single record.
func (s *WorkflowRunStore) RecordFailure(repo string, workflowID int64, headBranch string) {
	run := workflowRun{workflowID: workflowID, headBranch: headBranch}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.runs[repo] {
		if existing == run {
			return
		}
	}
	s.runs[repo] = append(s.runs[repo], run)
}

// RecordSuccess removes any matching failed run for the repository and
// reports whether one was removed. false means the success had no
// recorded failure to resolve.
func (s *WorkflowRunStore) RecordSuccess(repo string, workflowID int64, headBranch string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, ok := s.runs[repo]
	if !ok {
		return false
	}

	kept := runs[:0]
	for _, run := range runs {
		if run.workflowID == workflowID && run.headBranch == headBranch {
			continue
		}
		kept = append(kept, run)
	}
	removed := len(kept) != len(runs)
	if len(kept) == 0 {
		delete(s.runs, repo)
	} else {
		s.runs[repo] = kept
	}
	return removed
}

func (s *WorkflowRunStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, runs := range s.runs {
		total += len(runs)
	}
	return total
}
