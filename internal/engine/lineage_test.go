package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBareScheduler() *Scheduler {
	return newScheduler(schedulerConfig{
		budgets: DefaultBudgets(),
		now:     SystemTime,
		clock:   NewClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestAdopt_RejectsCycles(t *testing.T) {
	s := newBareScheduler()
	a := &Task{id: "a", sched: s}
	b := &Task{id: "b", sched: s}
	c := &Task{id: "c", sched: s}
	d := &Task{id: "d", sched: s}

	require.NoError(t, s.adopt(a, b))
	require.NoError(t, s.adopt(b, c))
	require.NoError(t, s.adopt(a, b), "re-registering under the same parent is a no-op")
	assert.Len(t, a.children, 1)

	tests := []struct {
		name          string
		parent, child *Task
	}{
		{"self", a, a},
		{"direct parent", b, a},
		{"grandparent", c, a},
		{"second parent", d, b},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.adopt(tt.parent, tt.child)
			var re *RuntimeError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, ErrCodeLineageCycle, re.Code)
		})
	}
}

func TestAdopt_OtherScheduler(t *testing.T) {
	s1, s2 := newBareScheduler(), newBareScheduler()

	err := s1.adopt(&Task{id: "p", sched: s1}, &Task{id: "c", sched: s2})
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeLineageCycle, re.Code)
}

func TestAdopt_DestroyedParentDestroysChild(t *testing.T) {
	s := newBareScheduler()
	parent := &Task{id: "p", sched: s}
	child := &Task{id: "c", sched: s}
	grandchild := &Task{id: "g", sched: s}
	require.NoError(t, s.adopt(child, grandchild))

	parent.Destroy()
	require.NoError(t, s.adopt(parent, child))

	assert.True(t, child.Destroyed())
	assert.True(t, grandchild.Destroyed())
}
