package engine

// adopt registers child under parent for cascading cancellation.
//
// A child has at most one parent and may not be the parent itself or any
// of its ancestors: either would make Destroy walk a cycle. Both tasks must
// belong to the same scheduler.
func (s *Scheduler) adopt(parent, child *Task) error {
	if child.sched != s {
		return &RuntimeError{
			Code:    ErrCodeLineageCycle,
			Message: "child task belongs to another scheduler",
			TaskID:  child.id,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for anc := parent; anc != nil; anc = anc.parent {
		if anc == child {
			return &RuntimeError{
				Code:    ErrCodeLineageCycle,
				Message: "task cannot be registered under itself or a descendant",
				TaskID:  child.id,
				Details: map[string]string{"parent": parent.id},
			}
		}
	}
	if child.parent != nil {
		if child.parent == parent {
			return nil
		}
		return &RuntimeError{
			Code:    ErrCodeLineageCycle,
			Message: "task already has a parent",
			TaskID:  child.id,
			Details: map[string]string{"parent": child.parent.id},
		}
	}

	child.parent = parent
	parent.children = append(parent.children, child)
	if parent.destroyed.Load() {
		s.destroyLocked(child)
	}
	return nil
}
