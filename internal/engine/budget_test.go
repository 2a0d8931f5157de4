package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sweep/internal/ir"
	"github.com/roach88/sweep/internal/testutil"
)

func TestBudgets_Defaults(t *testing.T) {
	b := DefaultBudgets()

	assert.Equal(t, 5*time.Millisecond, b.For(ir.PriorityLow))
	assert.Equal(t, 15*time.Millisecond, b.For(ir.PriorityNormal))
	assert.Equal(t, 25*time.Millisecond, b.For(ir.PriorityHigh))
	assert.Equal(t, 50*time.Millisecond, b.For(ir.PriorityCritical))
	require.NoError(t, b.Validate())
}

func TestBudgets_Fallback(t *testing.T) {
	b := Budgets{ir.PriorityNormal: 3 * time.Millisecond}
	assert.Equal(t, 3*time.Millisecond, b.For(ir.PriorityCritical))

	var empty Budgets
	assert.Equal(t, 15*time.Millisecond, empty.For(ir.PriorityLow))
}

func TestBudgets_ValidateOrdering(t *testing.T) {
	b := DefaultBudgets()
	b[ir.PriorityHigh] = time.Millisecond

	err := b.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "high")
}

func TestTimeSlice_Expired(t *testing.T) {
	clock := testutil.NewStepClock(time.Millisecond)
	s := newTimeSlice(2*time.Millisecond, clock)

	s.Restart()
	assert.False(t, s.Expired(), "1ms used")
	assert.False(t, s.Expired(), "2ms used")
	assert.True(t, s.Expired(), "3ms used")

	s.Restart()
	assert.False(t, s.Expired(), "restart begins a new slice")
}
