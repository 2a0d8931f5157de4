package ir

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultShape(t *testing.T) {
	s := DefaultShape()

	assert.True(t, s.Mult)
	assert.Equal(t, Unset, s.Count)
	assert.Equal(t, Unset, s.From)
	assert.Equal(t, Unset, s.StartIndex)
	assert.Equal(t, Unset, s.EndIndex)
	assert.Equal(t, OwnOnly, s.NotOwn)
	assert.Equal(t, PriorityNormal, s.Priority)
	assert.False(t, s.Cooperative())
	assert.False(t, s.Windowed())
	require.NoError(t, s.Validate())
}

func TestShape_Empty(t *testing.T) {
	tests := []struct {
		name  string
		start int
		end   int
		count int
		want  bool
	}{
		{"unset", Unset, Unset, Unset, false},
		{"end before start", 3, 1, Unset, true},
		{"single", 2, 2, Unset, false},
		{"end only", Unset, 0, Unset, false},
		{"zero count", Unset, Unset, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultShape()
			s.StartIndex, s.EndIndex, s.Count = tt.start, tt.end, tt.count
			assert.Equal(t, tt.want, s.Empty())
		})
	}
}

func TestShape_ValidateJoinsErrors(t *testing.T) {
	s := DefaultShape()
	s.Count = -3
	s.EndIndex = -7
	s.Priority = "urgent"

	err := s.Validate()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
	assert.Contains(t, err.Error(), "count must be non-negative")
	assert.Contains(t, err.Error(), "end_index must be non-negative")
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestTraversalSpec_Shape(t *testing.T) {
	one, three := 1, 3
	spec := TraversalSpec{
		Start:       &one,
		End:         &three,
		First:       true,
		Reverse:     true,
		Own:         "all",
		Cooperative: true,
		Priority:    "high",
	}

	s, err := spec.Shape()
	require.NoError(t, err)
	assert.Equal(t, 1, s.StartIndex)
	assert.Equal(t, 3, s.EndIndex)
	assert.False(t, s.Mult)
	assert.True(t, s.Reverse)
	assert.Equal(t, OwnAndInherited, s.NotOwn)
	assert.True(t, s.Cooperative())
	assert.Equal(t, PriorityHigh, s.Priority)
}

func TestTraversalSpec_ShapeRejectsBadOwnMode(t *testing.T) {
	_, err := TraversalSpec{Own: "mine"}.Shape()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid own mode")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("keystore")
	require.NoError(t, err)
	assert.Equal(t, KindKeyStore, k)
	assert.True(t, k.Mutable())
	assert.False(t, KindSource.Mutable())

	_, err = ParseKind("tree")
	require.Error(t, err)
}
